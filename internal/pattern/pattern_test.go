package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_DefaultSuffixes(t *testing.T) {
	f := New(nil, nil, nil)

	assert.True(t, f.Match("src/main.py"))
	assert.True(t, f.Match("deeply/nested/module.py"))
	assert.False(t, f.Match("docs/README.md"))
	assert.False(t, f.Match("config/settings.json"))
}

func TestFilter_CustomSuffixes(t *testing.T) {
	f := New([]string{".go", ".md"}, nil, nil)

	assert.True(t, f.Match("internal/engine.go"))
	assert.True(t, f.Match("docs/README.md"))
	assert.False(t, f.Match("src/main.py"))
}

func TestFilter_Includes(t *testing.T) {
	f := New(nil, []string{"src/**/*.json"}, nil)

	assert.True(t, f.Match("src/config/settings.json"))
	assert.False(t, f.Match("src/main.py"), "explicit includes replace the default suffix list")
	assert.False(t, f.Match("docs/settings.json"))
}

func TestFilter_Excludes(t *testing.T) {
	f := New([]string{".py"}, nil, []string{"vendor/**", "**/*_test.py"})

	assert.True(t, f.Match("src/main.py"))
	assert.False(t, f.Match("vendor/lib/dep.py"))
	assert.False(t, f.Match("src/main_test.py"))
}

func TestFilter_ExcludesWinOverIncludes(t *testing.T) {
	f := New([]string{".py"}, []string{"src/**"}, []string{"src/generated/**"})

	assert.True(t, f.Match("src/main.py"))
	assert.False(t, f.Match("src/generated/stub.py"))
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.py", "main.py", true},
		{"*.py", "src/main.py", true}, // bare filename pattern matches anywhere
		{"src/*.py", "src/main.py", true},
		{"src/*.py", "src/sub/main.py", false},
		{"src/**", "src/sub/main.py", true},
		{"src/**", "src", true},
		{"src/**/*.py", "src/a/b/main.py", true},
		{"src/**/*.py", "other/main.py", false},
		{"**/testdata/*", "pkg/testdata/fixture.py", true},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, matchGlob(tc.pattern, tc.path),
			"pattern %q path %q", tc.pattern, tc.path)
	}
}

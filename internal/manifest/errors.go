package manifest

import "errors"

// Sentinel errors for manifest loading.
var (
	// ErrMalformed is returned when the serialized manifest is not a
	// mapping with a files key, or when an entry is missing required
	// fields. The pass is aborted, no partial manifest is returned.
	ErrMalformed = errors.New("malformed manifest")

	// ErrInvalidEntry is returned when a file entry fails validation
	// (empty fingerprint or negative size). During Load it is wrapped
	// into an ErrMalformed error.
	ErrInvalidEntry = errors.New("invalid manifest entry")
)

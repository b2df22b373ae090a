package manifest

import "errors"

// Sentinel errors for manifest operations
var (
	// ErrNotFound means the target document does not exist. Callers treat it
	// as a skip.
	ErrNotFound = errors.New("document not found")

	// ErrMalformedDocument means neither an existing fragment nor the root
	// closing tag could be found, so there is nowhere to put the fragment.
	ErrMalformedDocument = errors.New("malformed document")

	ErrUnknownStrategy = errors.New("unknown merge strategy")
)

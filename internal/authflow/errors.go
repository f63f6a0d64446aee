package authflow

import "errors"

// Errors returned by the flow service.
var (
	// ErrBadRequest indicates missing or malformed input on flow creation.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound covers every verification failure on an existing flow
	// as well as an unknown, expired, or already-claimed state. The
	// failures share one error so a caller cannot probe which check
	// failed.
	ErrNotFound = errors.New("flow not found")
)

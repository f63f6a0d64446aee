package device

import "errors"

// Errors returned by the device lifecycle manager. Verification failures
// within one operation are deliberately collapsed to a single error so a
// caller cannot tell which check failed.
var (
	// ErrInvalidGrant covers every refresh failure: unknown device,
	// invalid or superseded refresh token, identity mismatch.
	ErrInvalidGrant = errors.New("invalid refresh grant")

	// ErrUnauthorized indicates an access token or device lookup failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIdentityMismatch indicates the device-generate identifier does
	// not match the one bound at flow completion.
	ErrIdentityMismatch = errors.New("device identity mismatch")
)

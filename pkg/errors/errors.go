package apperrors

import "errors"

// Standardized domain errors. Order rejections are values, not errors; these
// cover transport and credential failures.
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNetwork           = errors.New("network error")
	ErrMissingCredential = errors.New("missing credential")
)

package services

import "errors"

// Permission errors end the current attempt
var (
	ErrLocationPermissionDenied = errors.New("location permission denied")
	ErrCameraPermissionDenied   = errors.New("camera permission denied")
	ErrCameraUnavailable        = errors.New("camera unavailable")
)

// Validation errors are raised before any network call; the flow stays open
var (
	ErrInvalidQRFormat     = errors.New("invalid QR format")
	ErrQRIdentityMismatch  = errors.New("QR code does not match the active user or action")
	ErrInvalidCodeLength   = errors.New("code must be exactly 6 characters")
	ErrLocationUnavailable = errors.New("location reading unavailable")
	ErrLocationPending     = errors.New("waiting for location")
	ErrMissingUser         = errors.New("no active user")
	ErrInvalidAction       = errors.New("invalid action kind")
	ErrInvalidMethod       = errors.New("invalid proof method")
	ErrActionNotAllowed    = errors.New("action not allowed for today's attendance")
	ErrInvalidState        = errors.New("action not allowed in current state")
	ErrBusy                = errors.New("another request is in progress")
	ErrScanDebounced       = errors.New("scan ignored while re-arming")
	ErrNoActiveFlow        = errors.New("no active check-in flow")
)

// Remote failures
var (
	ErrCodeGenerationFailed  = errors.New("code generation failed")
	ErrCodeExpiredOrInvalid  = errors.New("code expired or invalid")
	ErrSubmissionFailed      = errors.New("submission failed")
	ErrSnapshotRefreshFailed = errors.New("failed to load today's attendance")
)

// IsValidationError reports whether err was raised locally before any network call
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidQRFormat, ErrQRIdentityMismatch, ErrInvalidCodeLength,
		ErrLocationUnavailable, ErrLocationPending, ErrMissingUser,
		ErrInvalidAction, ErrInvalidMethod, ErrActionNotAllowed, ErrInvalidState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

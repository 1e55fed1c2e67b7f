package lifecycle

import "errors"

var (
	// ErrNotFound means the trigger or vault does not exist or does not
	// belong to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation was attempted on a terminal or
	// wrong-state trigger.
	ErrInvalidState = errors.New("invalid trigger state")

	// ErrWindowExpired means a cancellation was attempted after the
	// cancellation deadline.
	ErrWindowExpired = errors.New("cancellation window expired")

	// ErrPermissionDenied means the subscription tier does not allow the
	// requested trigger type or feature.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation means the input was malformed.
	ErrValidation = errors.New("validation error")
)

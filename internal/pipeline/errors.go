package pipeline

import (
	"context"
	"errors"
)

var (
	// ErrThrottled is returned when the labeling service or the store
	// rejects a call for rate or capacity reasons
	ErrThrottled = errors.New("throttled")

	// ErrUnavailable is returned for transport failures, service 5xx
	// responses, and deadline expiry
	ErrUnavailable = errors.New("service unavailable")

	// ErrAccessDenied is returned when the caller lacks permission for
	// the object or the table
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidImage is returned when the labeling service cannot
	// process the referenced object
	ErrInvalidImage = errors.New("invalid image")
)

// Transient reports whether the runtime's redelivery can be expected
// to succeed where this attempt failed. Permanent errors (access
// denied, invalid image) are absorbed after logging instead.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

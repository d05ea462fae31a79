package imagery

import (
	"errors"
	"fmt"
)

// Sentinel errors for image acquisition.
var (
	ErrEmptyImage = errors.New("tile provider returned an empty image")
	ErrBadStatus  = errors.New("tile provider returned a non-success status")
)

// StatusError carries the HTTP status of a failed fetch.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tile provider status %d", e.StatusCode)
}

// Is makes every StatusError match ErrBadStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}

// Transient reports whether a retry could plausibly succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

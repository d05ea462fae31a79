package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors for vision analysis.
var (
	// ErrNoJSON means the response text held no JSON object.
	ErrNoJSON = errors.New("no JSON object in vision response")
	// ErrMalformedResponse means the JSON did not fit the response schema.
	ErrMalformedResponse = errors.New("malformed vision response")
	// ErrBadStatus means the vision service answered with a non-2xx status.
	ErrBadStatus = errors.New("vision service returned a non-success status")
)

// StatusError carries the HTTP status of a failed call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision service status %d: %s", e.StatusCode, e.Body)
}

// Is makes every StatusError match ErrBadStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrBadStatus
}

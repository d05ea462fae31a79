package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrMissingCredentials  = errors.New("missing collaborator credentials")
	ErrGeocoderUnavailable = errors.New("geocoder not configured")
	ErrBackpressure        = errors.New("job queue full")
	ErrInvalidJob          = errors.New("invalid job")
)

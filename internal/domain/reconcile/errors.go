package reconcile

import "errors"

// Sentinel errors for reconciliation.
var (
	// ErrNoEstimate means every fallback attempt failed.
	ErrNoEstimate = errors.New("no estimate available")
	// ErrNotConfigured means the orchestrator was built without a sampler or analyzer.
	ErrNotConfigured = errors.New("orchestrator not configured")
)

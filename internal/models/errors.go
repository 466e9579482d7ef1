package models

import "errors"

// Sentinel errors for the API error taxonomy. Handlers map these to HTTP
// status codes; everything else is a server error.
var (
	// ErrValidation marks client errors (empty query, limit out of range).
	ErrValidation = errors.New("validation")
	// ErrNotFound marks lookups for paths that are not in the index.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited marks requests rejected by the per-route budget.
	ErrRateLimited = errors.New("rate limited")
)

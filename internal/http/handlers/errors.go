// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These codes provide clients with a stable, machine-readable error taxonomy
// that supplements human-readable messages. Codes are lowercase, snake_case,
// and mirror common HTTP status semantics where possible; domain-specific
// codes cover conditions a bare status cannot express (e.g. a full queue).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeQueueFull        = "queue_full"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

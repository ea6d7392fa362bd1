// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// invalid_credentials is the single outcome of a failed code exchange.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "you have already reviewed this title"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)

// Package handlers defines the HTTP error codes returned across the API.
//
// Every error response carries an HTTP status and one of these codes so that
// clients can branch on the code rather than the message:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "run_in_progress",
//	  "message": "a reminder run is already in progress"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "service_unavailable"

	// Domain-specific:
	ErrCodeRunInProgress    = "run_in_progress"
	ErrCodeRunFailed        = "run_failed"
	ErrCodeRecommendation   = "recommendation_failed"
	ErrCodeProviderDisabled = "recommendations_disabled"
	ErrCodeListFailed       = "list_failed"
)

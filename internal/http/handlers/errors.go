// Package handlers defines the error codes returned in the error envelope.
//
// Codes are stable snake_case strings. Generic codes mirror the HTTP status;
// the domain codes name the operation that failed so clients can branch on
// them without parsing messages.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "frequency_hours: frequency must be a positive number of hours"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeCreateFailed = "create_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeDeleteFailed = "delete_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeDoseFailed   = "dose_update_failed"
	ErrCodeSeedFailed   = "seed_failed"
)

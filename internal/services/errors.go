// Package services defines the business logic for patients, medications, the
// dose log, alerts, adherence, falls, suggestions and the audit trail.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Any error that is neither a NotFound sentinel nor a
// *ValidationError is a store failure and is propagated unchanged.
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/repo"
)

// NotFound errors.
var (
	// ErrPatientNotFound indicates that the referenced patient does not exist.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrMedicationNotFound indicates that the referenced medication does not exist.
	ErrMedicationNotFound = errors.New("medication not found")

	// ErrDoseNotFound is returned when an operation needs a recorded dose
	// (undo) and nothing was logged for that scheduled time.
	ErrDoseNotFound = errors.New("dose not found")
)

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports an input that was rejected before touching the
// store. Message is meant for the person who typed the value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsNotFound reports whether err is one of the NotFound sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrMedicationNotFound) ||
		errors.Is(err, ErrDoseNotFound)
}

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isForeignKey detects FK violations, which surface when a parent row was
// removed concurrently.
func isForeignKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

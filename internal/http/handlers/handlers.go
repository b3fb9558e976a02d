// Package handlers – service contracts and wiring.
//
// Handlers are transport-thin: they bind and check input, call a service
// with a context carrying the acting role, and translate the result.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/utils"
)

//
// Service contracts (context-aware)
//

// PatientService manages patient records.
type PatientService interface {
	Create(ctx context.Context, in services.PatientInput) (*domain.Patient, error)
	Get(ctx context.Context, id string) (*domain.Patient, error)
	List(ctx context.Context) ([]domain.Patient, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Patient, int64, error)
	Update(ctx context.Context, id string, in services.PatientInput) (*domain.Patient, error)
	Delete(ctx context.Context, id string) error
	// Stats returns the patient count and latest update, used for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Names(ctx context.Context) ([]string, error)
}

// MedicationService manages dosing plans.
type MedicationService interface {
	Create(ctx context.Context, patientID string, in services.MedicationInput) (*domain.Medication, error)
	Get(ctx context.Context, id string) (*domain.Medication, error)
	ListForPatient(ctx context.Context, patientID string) ([]domain.Medication, error)
	Update(ctx context.Context, id string, in services.MedicationInput) (*domain.Medication, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.Medication, error)
	Stats(ctx context.Context, patientID string) (int64, *time.Time, error)
}

// DoseService is the dose log.
type DoseService interface {
	MarkTaken(ctx context.Context, medicationID string, scheduledAt, takenAt time.Time) (*domain.DoseEvent, bool, error)
	MarkSkipped(ctx context.Context, medicationID string, scheduledAt time.Time) (*domain.DoseEvent, bool, error)
	Undo(ctx context.Context, medicationID string, scheduledAt time.Time) (*domain.DoseEvent, bool, error)
	SetNote(ctx context.Context, medicationID string, scheduledAt time.Time, note string) (*domain.DoseEvent, error)
	Status(ctx context.Context, medicationID string, scheduledAt time.Time) (*services.DoseView, error)
	Upcoming(ctx context.Context, medicationID string, past, next int) ([]services.DoseView, error)
	History(ctx context.Context, medicationID string, limit int) ([]domain.DoseEvent, error)
	Today(ctx context.Context, patientID string) (*services.DayPlan, error)
}

// AlertService lists overdue doses.
type AlertService interface {
	Overdue(ctx context.Context, patientName string) ([]services.Alert, error)
}

// AdherenceService summarizes recent dosing.
type AdherenceService interface {
	ForPatient(ctx context.Context, patientID string) (*services.Adherence, error)
	Dashboard(ctx context.Context) ([]services.Adherence, error)
}

// FallService records falls.
type FallService interface {
	Record(ctx context.Context, patientID string, in services.FallInput) (*domain.FallEvent, error)
	List(ctx context.Context, patientID string, limit int) ([]domain.FallEvent, error)
}

// AuditService reads the audit trail.
type AuditService interface {
	ListRecent(ctx context.Context, entityType string, limit int) ([]domain.AuditLog, error)
}

// SuggestionService answers the name autocomplete. It never fails.
type SuggestionService interface {
	Suggest(ctx context.Context, query string) ([]domain.Suggestion, string)
}

// Seeder loads the demo data set.
type Seeder interface {
	SeedDemo(ctx context.Context) (patients, medications int, err error)
}

// IdempotencyStore remembers which resource a create request produced.
type IdempotencyStore interface {
	Remember(ctx context.Context, actor, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Seeder and Idempotency
// are optional.
type Services struct {
	Patients    PatientService
	Medications MedicationService
	Doses       DoseService
	Alerts      AlertService
	Adherence   AdherenceService
	Falls       FallService
	Audit       AuditService
	Suggestions SuggestionService
	Seeder      Seeder
	Idempotency IdempotencyStore
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	svc        Services
	apiBase    string
	roleSwitch bool
}

// Option configures Handlers.
type Option func(*Handlers)

// WithAPIBase sets the path prefix the pages use to call the JSON API.
func WithAPIBase(prefix string) Option {
	return func(h *Handlers) { h.apiBase = strings.TrimSuffix(prefix, "/") }
}

// WithRoleSwitch shows the role selector on the pages.
func WithRoleSwitch(on bool) Option {
	return func(h *Handlers) { h.roleSwitch = on }
}

// New returns Handlers bound to s.
func New(s Services, opts ...Option) *Handlers {
	h := &Handlers{svc: s}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}

// clampPagination reads page/page_size with defaults 1/20 and a cap of 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = max(utils.AtoiDefault(c.Query("page"), 1), 1)
	pageSize = utils.IntInRange(c.Query("page_size"), 20, 1, 100)
	return page, pageSize
}

// parseTimestamp accepts RFC 3339 with or without seconds, in UTC when no
// zone is given.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

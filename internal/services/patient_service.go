// Package services – PatientService
//
// PatientService validates and normalizes patient records and coordinates
// repository operations for creating, listing (with pagination), updating
// and deleting patients. Deleting a patient removes its medications, dose
// log and falls in one transaction.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

// PatientRepo defines the repository contract required by PatientService.
type PatientRepo interface {
	CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error
	GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error)
	ListPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error)
	CountPatients(ctx context.Context, db *gorm.DB) (int64, error)
	ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error)
	UpdatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error
	DeletePatientCascade(ctx context.Context, db *gorm.DB, id string) error
}

// PatientInput carries the editable fields of a patient.
type PatientInput struct {
	Name                     string `json:"name"`
	Notes                    string `json:"notes"`
	DateOfBirth              string `json:"date_of_birth"`
	Diagnosis                string `json:"diagnosis"`
	Allergies                string `json:"allergies"`
	EmergencyContactName     string `json:"emergency_contact_name"`
	EmergencyContactPhone    string `json:"emergency_contact_phone"`
	EmergencyContactRelation string `json:"emergency_contact_relation"`
}

// PatientService provides patient-level operations.
type PatientService struct {
	DB    *gorm.DB
	Repo  PatientRepo
	Clock clock.Clock

	// NameMaxLen caps stored names by rune length.
	NameMaxLen int
}

// NewPatientService constructs a PatientService with default limits.
func NewPatientService(db *gorm.DB, r PatientRepo, clk clock.Clock) *PatientService {
	return &PatientService{DB: db, Repo: r, Clock: clk, NameMaxLen: 120}
}

// Create validates in and inserts a new patient.
func (s *PatientService) Create(ctx context.Context, in PatientInput) (*domain.Patient, error) {
	ctx, span := otel.Tracer("services/PatientService").Start(ctx, "Create")
	defer span.End()

	p := &domain.Patient{}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.CreatePatient(ctx, tx, p); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, ActionCreate, EntityPatient, p.ID, map[string]any{"name": p.Name})
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("patient.id", p.ID))
	return p, nil
}

// Get returns a patient or ErrPatientNotFound.
func (s *PatientService) Get(ctx context.Context, id string) (*domain.Patient, error) {
	p, err := s.Repo.GetPatient(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns all patients ordered by name (non-paginated).
func (s *PatientService) List(ctx context.Context) ([]domain.Patient, error) {
	return s.Repo.ListPatients(ctx, s.DB)
}

// ListPage returns a page of patients ordered by name.
// It applies defaults for invalid page/pageSize and returns the total count.
func (s *PatientService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Patient, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountPatients(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Patient{}, 0, nil
	}

	items, err := s.Repo.ListPatientsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Update replaces the editable fields of a patient.
func (s *PatientService) Update(ctx context.Context, id string, in PatientInput) (*domain.Patient, error) {
	ctx, span := otel.Tracer("services/PatientService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("patient.id", id)))
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.UpdatePatient(ctx, tx, p); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, ActionUpdate, EntityPatient, p.ID, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the patient and everything that belongs to it. Nothing is
// removed when the patient does not exist.
func (s *PatientService) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("services/PatientService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("patient.id", id)))
	defer span.End()

	if err := s.Repo.DeletePatientCascade(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrPatientNotFound
		}
		return err
	}
	return record(ctx, s.DB, s.Clock, ActionDelete, EntityPatient, id, nil)
}

// Stats returns the patient count and latest update, for ETags.
func (s *PatientService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.PatientsStats(ctx, s.DB)
}

// Names returns the distinct patient names, for filter suggestions.
func (s *PatientService) Names(ctx context.Context) ([]string, error) {
	return repo.PatientNames(ctx, s.DB)
}

// apply validates in and copies it onto p.
func (s *PatientService) apply(p *domain.Patient, in PatientInput) error {
	name := collapseSpaces(in.Name)
	if name == "" {
		return invalid("name", "name is required")
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return invalid("name", "name is too long")
	}

	var dob *string
	if v := strings.TrimSpace(in.DateOfBirth); v != "" {
		d, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return invalid("date_of_birth", "date_of_birth must be YYYY-MM-DD")
		}
		if d.After(s.Clock.Now()) {
			return invalid("date_of_birth", "date_of_birth cannot be in the future")
		}
		dob = &v
	}

	p.Name = name
	p.Notes = strings.TrimSpace(in.Notes)
	p.DateOfBirth = dob
	p.Diagnosis = strings.TrimSpace(in.Diagnosis)
	p.Allergies = strings.TrimSpace(in.Allergies)
	p.EmergencyContactName = strings.TrimSpace(in.EmergencyContactName)
	p.EmergencyContactPhone = strings.TrimSpace(in.EmergencyContactPhone)
	p.EmergencyContactRelation = strings.TrimSpace(in.EmergencyContactRelation)
	return nil
}

// collapseSpaces trims s and collapses inner whitespace runs to one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stamp normalizes t to the stored precision: UTC, whole seconds.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// errPatient maps a lookup failure of patientID to ErrPatientNotFound.
func errPatient(err error) error {
	if isNotFound(err) || errors.Is(err, ErrPatientNotFound) {
		return ErrPatientNotFound
	}
	return err
}

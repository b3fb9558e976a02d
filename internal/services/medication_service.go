// Package services – MedicationService
//
// MedicationService manages dosing plans. Every write goes through
// schedule.New so a stored medication always describes a valid schedule:
// positive frequency and an end time that does not precede the start.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/schedule"
)

// MedicationInput carries the editable fields of a medication.
// A nil StartTime means "now"; a nil Active means true on create and
// "unchanged" on update.
type MedicationInput struct {
	Name           string     `json:"name"`
	DoseValue      string     `json:"dose_value"`
	DoseUnit       string     `json:"dose_unit"`
	FrequencyHours int        `json:"frequency_hours"`
	Notes          string     `json:"notes"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	RxCUI          string     `json:"rxcui"`
	RxName         string     `json:"rx_name"`
	Active         *bool      `json:"active"`
}

// MedicationService provides medication-level operations.
type MedicationService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// ScheduleOf returns the dose schedule described by m.
func ScheduleOf(m *domain.Medication) (schedule.Schedule, error) {
	return schedule.New(m.StartTime, m.FrequencyHours, m.EndTime)
}

// Create adds a medication to an existing patient.
func (s *MedicationService) Create(ctx context.Context, patientID string, in MedicationInput) (*domain.Medication, error) {
	ctx, span := otel.Tracer("services/MedicationService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("patient.id", patientID)))
	defer span.End()

	if _, err := repo.GetPatient(ctx, s.DB, patientID); err != nil {
		return nil, errPatient(err)
	}
	m := &domain.Medication{PatientID: patientID, Active: true}
	if err := s.apply(m, in); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateMedication(ctx, tx, m); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, ActionCreate, EntityMedication, m.ID, map[string]any{
			"patient_id":      patientID,
			"name":            m.Name,
			"frequency_hours": m.FrequencyHours,
		})
	})
	if err != nil {
		if isForeignKey(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return m, nil
}

// Get returns a medication or ErrMedicationNotFound.
func (s *MedicationService) Get(ctx context.Context, id string) (*domain.Medication, error) {
	m, err := repo.GetMedication(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListForPatient returns the medications of an existing patient.
func (s *MedicationService) ListForPatient(ctx context.Context, patientID string) ([]domain.Medication, error) {
	if _, err := repo.GetPatient(ctx, s.DB, patientID); err != nil {
		return nil, errPatient(err)
	}
	return repo.ListMedicationsForPatient(ctx, s.DB, patientID)
}

// Stats returns the medication count of a patient and the latest update,
// for ETags.
func (s *MedicationService) Stats(ctx context.Context, patientID string) (int64, *time.Time, error) {
	return repo.MedicationsStats(ctx, s.DB, patientID)
}

// Update replaces the editable fields of a medication.
func (s *MedicationService) Update(ctx context.Context, id string, in MedicationInput) (*domain.Medication, error) {
	ctx, span := otel.Tracer("services/MedicationService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("medication.id", id)))
	defer span.End()

	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.StartTime == nil {
		keep := m.StartTime
		in.StartTime = &keep
	}
	if err := s.apply(m, in); err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateMedication(ctx, tx, m); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, ActionUpdate, EntityMedication, m.ID, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetActive pauses (false) or resumes (true) a medication. Paused
// medications keep their history but produce no alerts.
func (s *MedicationService) SetActive(ctx context.Context, id string, active bool) (*domain.Medication, error) {
	action := ActionPause
	if active {
		action = ActionResume
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetMedicationActive(ctx, tx, id, active); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, action, EntityMedication, id, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// apply validates in and copies it onto m.
func (s *MedicationService) apply(m *domain.Medication, in MedicationInput) error {
	name := collapseSpaces(in.Name)
	if name == "" {
		return invalid("name", "name is required")
	}

	start := s.Clock.Now()
	if in.StartTime != nil {
		start = *in.StartTime
	}
	start = stamp(start)
	var end *time.Time
	if in.EndTime != nil {
		e := stamp(*in.EndTime)
		end = &e
	}
	if _, err := schedule.New(start, in.FrequencyHours, end); err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidFrequency):
			return invalid("frequency_hours", err.Error())
		case errors.Is(err, schedule.ErrEndBeforeStart):
			return invalid("end_time", err.Error())
		}
		return err
	}

	m.Name = name
	m.DoseValue = strings.TrimSpace(in.DoseValue)
	m.DoseUnit = strings.TrimSpace(in.DoseUnit)
	m.FrequencyHours = in.FrequencyHours
	m.Notes = strings.TrimSpace(in.Notes)
	m.StartTime = start
	m.EndTime = end
	m.RxCUI = strings.TrimSpace(in.RxCUI)
	m.RxName = strings.TrimSpace(in.RxName)
	if m.RxCUI == "" {
		m.RxName = ""
	}
	if in.Active != nil {
		m.Active = *in.Active
	}
	return nil
}

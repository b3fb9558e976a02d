// Package services – AlertService
//
// AlertService is the only component combining patients, medications and
// the dose log. For each active medication it takes the most recent dose at
// or before now and reports it when nothing resolved it (taken or skipped).
package services

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/repo"
)

// Alert is an overdue dose.
type Alert struct {
	PatientID      string        `json:"patient_id"`
	PatientName    string        `json:"patient_name"`
	MedicationID   string        `json:"medication_id"`
	MedicationName string        `json:"medication_name"`
	Dose           string        `json:"dose,omitempty"`
	ScheduledAt    time.Time     `json:"scheduled_at"`
	Lateness       time.Duration `json:"-"`
	LateMinutes    int           `json:"late_minutes"`
}

// AlertService aggregates overdue doses across patients.
type AlertService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// Overdue returns the unresolved due doses at now, most overdue first, ties
// broken by patient name then medication name. A non-blank patientName
// restricts the scan to patients whose name contains it.
func (s *AlertService) Overdue(ctx context.Context, patientName string) ([]Alert, error) {
	ctx, span := otel.Tracer("services/AlertService").Start(ctx, "Overdue",
		trace.WithAttributes(attribute.String("filter.patient_name", patientName)))
	defer span.End()

	meds, err := repo.ListActiveMedications(ctx, s.DB, patientName)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()

	out := make([]Alert, 0)
	for i := range meds {
		m := &meds[i]
		if m.Patient.ID == "" || m.Ended(now) {
			continue
		}
		sch, err := ScheduleOf(m)
		if err != nil {
			continue
		}
		due, ok := sch.LastAtOrBefore(now)
		if !ok {
			continue
		}
		ev, err := repo.GetDoseEvent(ctx, s.DB, m.ID, due.At)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err == nil && ev.Resolved() {
			continue
		}
		late := now.Sub(due.At)
		out = append(out, Alert{
			PatientID:      m.PatientID,
			PatientName:    m.Patient.Name,
			MedicationID:   m.ID,
			MedicationName: m.Name,
			Dose:           m.DisplayDose(),
			ScheduledAt:    due.At.UTC(),
			Lateness:       late,
			LateMinutes:    int(late / time.Minute),
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Lateness != out[b].Lateness {
			return out[a].Lateness > out[b].Lateness
		}
		if out[a].PatientName != out[b].PatientName {
			return out[a].PatientName < out[b].PatientName
		}
		if out[a].MedicationName != out[b].MedicationName {
			return out[a].MedicationName < out[b].MedicationName
		}
		return out[a].MedicationID < out[b].MedicationID
	})
	span.SetAttributes(attribute.Int("alerts.count", len(out)))
	return out, nil
}

// sortViews orders doses by time, then medication name.
func sortViews(vs []DoseView) {
	sort.SliceStable(vs, func(a, b int) bool {
		if !vs[a].ScheduledAt.Equal(vs[b].ScheduledAt) {
			return vs[a].ScheduledAt.Before(vs[b].ScheduledAt)
		}
		return vs[a].MedicationName < vs[b].MedicationName
	})
}

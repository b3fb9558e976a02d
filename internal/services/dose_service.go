// Package services – DoseService
//
// DoseService is the dose log. Doses are identified by (medication,
// scheduled timestamp) and must lie on the medication's schedule; at most
// one log entry exists per dose. Marking a dose taken that is already taken
// is a no-op: the first taken_at is kept and changed=false is reported.
//
// Observability: mutating methods are OpenTelemetry-instrumented.
package services

import (
	"context"
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
	"github.com/tbourn/healthline/internal/schedule"
)

// MaxNoteRunes caps dose notes.
const MaxNoteRunes = 500

// DoseView is a scheduled dose joined with its log entry.
type DoseView struct {
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Dose           string     `json:"dose,omitempty"`
	PatientID      string     `json:"patient_id,omitempty"`
	PatientName    string     `json:"patient_name,omitempty"`
	Index          int        `json:"index"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	Status         string     `json:"status"`
	TakenAt        *time.Time `json:"taken_at,omitempty"`
	Note           string     `json:"note,omitempty"`
}

// HourGroup collects the doses of one hour of a day.
type HourGroup struct {
	Hour  int        `json:"hour"`
	Doses []DoseView `json:"doses"`
}

// DayPlan is a patient's doses for one UTC day, grouped by hour.
type DayPlan struct {
	PatientID string      `json:"patient_id"`
	Date      string      `json:"date"`
	Hours     []HourGroup `json:"hours"`
}

// DoseService records outcomes of scheduled doses.
type DoseService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// MarkTaken records the dose at scheduledAt as taken at takenAt (zero means
// now). Re-marking a taken dose changes nothing and returns changed=false.
// A skipped dose becomes taken.
func (s *DoseService) MarkTaken(ctx context.Context, medicationID string, scheduledAt, takenAt time.Time) (ev *domain.DoseEvent, changed bool, err error) {
	ctx, span := otel.Tracer("services/DoseService").Start(ctx, "MarkTaken",
		trace.WithAttributes(attribute.String("medication.id", medicationID)))
	defer span.End()

	if takenAt.IsZero() {
		takenAt = s.Clock.Now()
	}
	takenAt = stamp(takenAt)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at, err := s.resolve(ctx, tx, medicationID, scheduledAt)
		if err != nil {
			return err
		}
		ev, err = repo.GetOrCreateDoseEvent(ctx, tx, medicationID, at)
		if err != nil {
			return err
		}
		if ev.Taken {
			return nil
		}
		if err := repo.UpdateDoseEvent(ctx, tx, ev.ID, map[string]any{
			"taken":    true,
			"taken_at": takenAt,
			"skipped":  false,
		}); err != nil {
			return err
		}
		ev.Taken, ev.TakenAt, ev.Skipped = true, &takenAt, false
		changed = true
		return record(ctx, tx, s.Clock, ActionTake, EntityDose, ev.ID, map[string]any{
			"medication_id": medicationID,
			"scheduled_at":  at,
		})
	})
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("dose.changed", changed))
	return ev, changed, nil
}

// IsTaken reports whether the dose at scheduledAt was marked taken. It is a
// pure lookup and fails with ErrMedicationNotFound for unknown medications.
func (s *DoseService) IsTaken(ctx context.Context, medicationID string, scheduledAt time.Time) (bool, error) {
	if _, err := s.medication(ctx, s.DB, medicationID); err != nil {
		return false, err
	}
	ev, err := repo.GetDoseEvent(ctx, s.DB, medicationID, stamp(scheduledAt))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return ev.Taken, nil
}

// MarkSkipped records the dose as deliberately not given. A taken dose
// loses its taken_at. Skipping a skipped dose is a no-op.
func (s *DoseService) MarkSkipped(ctx context.Context, medicationID string, scheduledAt time.Time) (ev *domain.DoseEvent, changed bool, err error) {
	ctx, span := otel.Tracer("services/DoseService").Start(ctx, "MarkSkipped",
		trace.WithAttributes(attribute.String("medication.id", medicationID)))
	defer span.End()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at, err := s.resolve(ctx, tx, medicationID, scheduledAt)
		if err != nil {
			return err
		}
		ev, err = repo.GetOrCreateDoseEvent(ctx, tx, medicationID, at)
		if err != nil {
			return err
		}
		if ev.Skipped {
			return nil
		}
		if err := repo.UpdateDoseEvent(ctx, tx, ev.ID, map[string]any{
			"taken":    false,
			"taken_at": nil,
			"skipped":  true,
		}); err != nil {
			return err
		}
		ev.Taken, ev.TakenAt, ev.Skipped = false, nil, true
		changed = true
		return record(ctx, tx, s.Clock, ActionSkip, EntityDose, ev.ID, map[string]any{
			"medication_id": medicationID,
			"scheduled_at":  at,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return ev, changed, nil
}

// Undo clears the taken/skipped outcome of a dose, keeping its note.
// ErrDoseNotFound is returned when nothing was logged for that dose; an
// entry with no outcome is left alone and reported with changed=false.
func (s *DoseService) Undo(ctx context.Context, medicationID string, scheduledAt time.Time) (ev *domain.DoseEvent, changed bool, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at, err := s.resolve(ctx, tx, medicationID, scheduledAt)
		if err != nil {
			return err
		}
		ev, err = repo.GetDoseEvent(ctx, tx, medicationID, at)
		if err != nil {
			if isNotFound(err) {
				return ErrDoseNotFound
			}
			return err
		}
		if !ev.Resolved() {
			return nil
		}
		if err := repo.UpdateDoseEvent(ctx, tx, ev.ID, map[string]any{
			"taken":    false,
			"taken_at": nil,
			"skipped":  false,
		}); err != nil {
			return err
		}
		ev.Taken, ev.TakenAt, ev.Skipped = false, nil, false
		changed = true
		return record(ctx, tx, s.Clock, ActionUndo, EntityDose, ev.ID, map[string]any{"medication_id": medicationID})
	})
	if err != nil {
		return nil, false, err
	}
	return ev, changed, nil
}

// SetNote stores a free-text note on the dose, creating its log entry when
// needed. A blank note clears it.
func (s *DoseService) SetNote(ctx context.Context, medicationID string, scheduledAt time.Time, note string) (*domain.DoseEvent, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxNoteRunes {
		return nil, invalid("note", "note is too long")
	}
	var ev *domain.DoseEvent
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at, err := s.resolve(ctx, tx, medicationID, scheduledAt)
		if err != nil {
			return err
		}
		ev, err = repo.GetOrCreateDoseEvent(ctx, tx, medicationID, at)
		if err != nil {
			return err
		}
		if err := repo.UpdateDoseEvent(ctx, tx, ev.ID, map[string]any{"note": note}); err != nil {
			return err
		}
		ev.Note = note
		return record(ctx, tx, s.Clock, ActionNote, EntityDose, ev.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Status returns the view of a single scheduled dose.
func (s *DoseService) Status(ctx context.Context, medicationID string, scheduledAt time.Time) (*DoseView, error) {
	m, err := s.medication(ctx, s.DB, medicationID)
	if err != nil {
		return nil, err
	}
	sch, err := ScheduleOf(m)
	if err != nil {
		return nil, err
	}
	at := stamp(scheduledAt)
	k, ok := sch.IsScheduled(at)
	if !ok {
		return nil, invalid("scheduled_at", "not a scheduled dose time for this medication")
	}
	ev, err := repo.GetDoseEvent(ctx, s.DB, medicationID, at)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		ev = nil
	}
	v := view(m, schedule.Dose{Index: k, At: at}, ev, s.Clock.Now())
	return &v, nil
}

// Upcoming returns up to past doses at or before now and up to next doses
// after it, each with its logged status.
func (s *DoseService) Upcoming(ctx context.Context, medicationID string, past, next int) ([]DoseView, error) {
	m, err := s.medication(ctx, s.DB, medicationID)
	if err != nil {
		return nil, err
	}
	sch, err := ScheduleOf(m)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	doses := sch.Window(now, past, next)
	if len(doses) == 0 {
		return []DoseView{}, nil
	}
	evs, err := repo.ListDoseEventsBetween(ctx, s.DB, []string{m.ID}, doses[0].At, doses[len(doses)-1].At.Add(time.Second))
	if err != nil {
		return nil, err
	}
	idx := repo.IndexDoseEvents(evs)
	out := make([]DoseView, 0, len(doses))
	for _, d := range doses {
		out = append(out, view(m, d, idx[repo.DoseKey{MedicationID: m.ID, Unix: d.At.Unix()}], now))
	}
	return out, nil
}

// History returns the latest log entries of a medication.
func (s *DoseService) History(ctx context.Context, medicationID string, limit int) ([]domain.DoseEvent, error) {
	if _, err := s.medication(ctx, s.DB, medicationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	return repo.ListRecentDoseEvents(ctx, s.DB, medicationID, limit)
}

// Today returns the patient's doses scheduled during the current UTC day of
// the logical clock, for active (not paused) medications, grouped by hour.
func (s *DoseService) Today(ctx context.Context, patientID string) (*DayPlan, error) {
	p, err := repo.GetPatient(ctx, s.DB, patientID)
	if err != nil {
		return nil, errPatient(err)
	}
	meds, err := repo.ListMedicationsForPatient(ctx, s.DB, patientID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	ids := make([]string, 0, len(meds))
	for _, m := range meds {
		ids = append(ids, m.ID)
	}
	evs, err := repo.ListDoseEventsBetween(ctx, s.DB, ids, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	idx := repo.IndexDoseEvents(evs)

	byHour := map[int][]DoseView{}
	for i := range meds {
		m := &meds[i]
		if !m.Active {
			continue
		}
		sch, err := ScheduleOf(m)
		if err != nil {
			continue
		}
		m.Patient = *p
		for _, d := range sch.Between(dayStart, dayEnd) {
			v := view(m, d, idx[repo.DoseKey{MedicationID: m.ID, Unix: d.At.Unix()}], now)
			byHour[d.At.Hour()] = append(byHour[d.At.Hour()], v)
		}
	}

	plan := &DayPlan{PatientID: p.ID, Date: dayStart.Format(domain.DateLayout), Hours: []HourGroup{}}
	for h := 0; h < 24; h++ {
		ds := byHour[h]
		if len(ds) == 0 {
			continue
		}
		sortViews(ds)
		plan.Hours = append(plan.Hours, HourGroup{Hour: h, Doses: ds})
	}
	return plan, nil
}

// resolve loads the medication and checks that scheduledAt is one of its
// doses, returning the normalized timestamp.
func (s *DoseService) resolve(ctx context.Context, db *gorm.DB, medicationID string, scheduledAt time.Time) (time.Time, error) {
	m, err := s.medication(ctx, db, medicationID)
	if err != nil {
		return time.Time{}, err
	}
	sch, err := ScheduleOf(m)
	if err != nil {
		return time.Time{}, err
	}
	at := stamp(scheduledAt)
	if _, ok := sch.IsScheduled(at); !ok {
		return time.Time{}, invalid("scheduled_at", "not a scheduled dose time for this medication")
	}
	return at, nil
}

func (s *DoseService) medication(ctx context.Context, db *gorm.DB, id string) (*domain.Medication, error) {
	m, err := repo.GetMedication(ctx, db, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return m, nil
}

func view(m *domain.Medication, d schedule.Dose, ev *domain.DoseEvent, now time.Time) DoseView {
	v := DoseView{
		MedicationID:   m.ID,
		MedicationName: m.Name,
		Dose:           m.DisplayDose(),
		PatientID:      m.PatientID,
		PatientName:    m.Patient.Name,
		Index:          d.Index,
		ScheduledAt:    d.At.UTC(),
		Status:         domain.DoseStatus(ev, d.At, now),
	}
	if ev != nil {
		v.TakenAt = ev.TakenAt
		v.Note = ev.Note
	}
	return v
}

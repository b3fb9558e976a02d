package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

// FallInput describes a fall. A nil OccurredAt means now.
type FallInput struct {
	OccurredAt *time.Time `json:"occurred_at"`
	Location   string     `json:"location"`
	Note       string     `json:"note"`
}

// FallService records falls suffered by patients.
type FallService struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// Record stores a fall for an existing patient. Falls cannot be dated in
// the future.
func (s *FallService) Record(ctx context.Context, patientID string, in FallInput) (*domain.FallEvent, error) {
	if _, err := repo.GetPatient(ctx, s.DB, patientID); err != nil {
		return nil, errPatient(err)
	}
	loc := collapseSpaces(in.Location)
	if loc == "" {
		return nil, invalid("location", "location is required")
	}
	now := stamp(s.Clock.Now())
	at := now
	if in.OccurredAt != nil {
		at = stamp(*in.OccurredAt)
	}
	if at.After(now) {
		return nil, invalid("occurred_at", "occurred_at cannot be in the future")
	}

	f := &domain.FallEvent{PatientID: patientID, OccurredAt: at, Location: loc, Note: strings.TrimSpace(in.Note)}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateFallEvent(ctx, tx, f); err != nil {
			return err
		}
		return record(ctx, tx, s.Clock, ActionFall, EntityFall, f.ID, map[string]any{"patient_id": patientID})
	})
	if err != nil {
		if isForeignKey(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns the latest falls of a patient (50 by default).
func (s *FallService) List(ctx context.Context, patientID string, limit int) ([]domain.FallEvent, error) {
	if _, err := repo.GetPatient(ctx, s.DB, patientID); err != nil {
		return nil, errPatient(err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return repo.ListFallEvents(ctx, s.DB, patientID, limit)
}

// CountLast90Days counts the patient's falls in the last 90 days.
func (s *FallService) CountLast90Days(ctx context.Context, patientID string) (int64, error) {
	return repo.CountFallsSince(ctx, s.DB, patientID, s.Clock.Now().AddDate(0, 0, -90))
}

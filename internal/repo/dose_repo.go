package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/domain"
)

// GetDoseEvent returns the log entry for (medicationID, scheduledAt), or
// ErrNotFound when nothing was recorded for that dose.
func GetDoseEvent(ctx context.Context, db *gorm.DB, medicationID string, scheduledAt time.Time) (*domain.DoseEvent, error) {
	var ev domain.DoseEvent
	err := db.WithContext(ctx).
		Where("medication_id = ? AND scheduled_unix = ?", medicationID, scheduledAt.Unix()).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CreateDoseEvent inserts ev, assigning a UUID and the unix key. It returns
// ErrDuplicate when an entry already exists for the same medication and
// scheduled timestamp.
func CreateDoseEvent(ctx context.Context, db *gorm.DB, ev *domain.DoseEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.ScheduledAt = ev.ScheduledAt.UTC()
	ev.ScheduledUnix = ev.ScheduledAt.Unix()
	if err := db.WithContext(ctx).Omit("Medication").Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateDoseEvent writes fields onto the entry with id. Keys are column
// names; zero values are written. Returns ErrNotFound if no row matched.
func UpdateDoseEvent(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.DoseEvent{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetOrCreateDoseEvent returns the entry for (medicationID, scheduledAt),
// inserting an unresolved one first when none exists. A concurrent insert of
// the same dose is absorbed by re-reading the winner's row.
func GetOrCreateDoseEvent(ctx context.Context, db *gorm.DB, medicationID string, scheduledAt time.Time) (*domain.DoseEvent, error) {
	ev, err := GetDoseEvent(ctx, db, medicationID, scheduledAt)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	ev = &domain.DoseEvent{MedicationID: medicationID, ScheduledAt: scheduledAt}
	if err := CreateDoseEvent(ctx, db, ev); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return GetDoseEvent(ctx, db, medicationID, scheduledAt)
		}
		return nil, err
	}
	return ev, nil
}

// ListRecentDoseEvents returns up to limit entries of a medication, most
// recently scheduled first.
func ListRecentDoseEvents(ctx context.Context, db *gorm.DB, medicationID string, limit int) ([]domain.DoseEvent, error) {
	var out []domain.DoseEvent
	err := db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("scheduled_unix desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListDoseEventsBetween returns the entries of the given medications whose
// scheduled time lies in [from, to), ordered by scheduled time.
func ListDoseEventsBetween(ctx context.Context, db *gorm.DB, medicationIDs []string, from, to time.Time) ([]domain.DoseEvent, error) {
	if len(medicationIDs) == 0 {
		return nil, nil
	}
	var out []domain.DoseEvent
	err := db.WithContext(ctx).
		Where("medication_id IN ? AND scheduled_unix >= ? AND scheduled_unix < ?", medicationIDs, from.Unix(), to.Unix()).
		Order("scheduled_unix asc").
		Find(&out).Error
	return out, err
}

// DoseKey identifies a scheduled dose in lookups built from
// ListDoseEventsBetween.
type DoseKey struct {
	MedicationID string
	Unix         int64
}

// IndexDoseEvents maps entries by (medication, scheduled second).
func IndexDoseEvents(evs []domain.DoseEvent) map[DoseKey]*domain.DoseEvent {
	out := make(map[DoseKey]*domain.DoseEvent, len(evs))
	for i := range evs {
		out[DoseKey{MedicationID: evs[i].MedicationID, Unix: evs[i].ScheduledUnix}] = &evs[i]
	}
	return out
}

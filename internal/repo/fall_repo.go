package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/domain"
)

// CreateFallEvent inserts f, assigning a UUID when f.ID is empty.
func CreateFallEvent(ctx context.Context, db *gorm.DB, f *domain.FallEvent) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Omit("Patient").Create(f).Error
}

// ListFallEvents returns up to limit falls of a patient, most recent first.
func ListFallEvents(ctx context.Context, db *gorm.DB, patientID string, limit int) ([]domain.FallEvent, error) {
	var out []domain.FallEvent
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("occurred_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountFallsSince counts the patient's falls that occurred at or after since.
func CountFallsSince(ctx context.Context, db *gorm.DB, patientID string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.FallEvent{}).
		Where("patient_id = ? AND occurred_at >= ?", patientID, since.UTC()).
		Count(&n).Error
	return n, err
}

package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/domain"
)

// InsertAudit appends an audit entry.
func InsertAudit(ctx context.Context, db *gorm.DB, a *domain.AuditLog) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(a).Error
}

// ListAudit returns up to limit entries, newest first. When entityType is
// non-empty only entries of that type are returned.
func ListAudit(ctx context.Context, db *gorm.DB, entityType string, limit int) ([]domain.AuditLog, error) {
	q := db.WithContext(ctx).Model(&domain.AuditLog{})
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	var out []domain.AuditLog
	err := q.Order("at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}

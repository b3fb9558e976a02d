package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/healthline/internal/domain"
)

// GetSuggestionCache returns the cached lookup for query, or ErrNotFound.
func GetSuggestionCache(ctx context.Context, db *gorm.DB, query string) (*domain.SuggestionCache, error) {
	var c domain.SuggestionCache
	if err := db.WithContext(ctx).Where("query = ?", query).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertSuggestionCache stores responseJSON for query, replacing any
// previous entry.
func UpsertSuggestionCache(ctx context.Context, db *gorm.DB, query, responseJSON string, now time.Time) error {
	row := &domain.SuggestionCache{Query: query, ResponseJSON: responseJSON, UpdatedAt: now.UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "query"}},
			DoUpdates: clause.AssignmentColumns([]string{"response_json", "updated_at"}),
		}).
		Create(row).Error
}

package domain

import "time"

// Suggestion is a medication name candidate from the controlled vocabulary.
type Suggestion struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// SuggestionCache stores the normalized lookup result for a query string.
type SuggestionCache struct {
	Query        string    `gorm:"type:varchar(255);primaryKey"`
	ResponseJSON string    `gorm:"type:text;not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the database table name for SuggestionCache.
func (SuggestionCache) TableName() string { return "suggestion_cache" }

// Fresh reports whether the entry is at most ttl old at now.
func (c SuggestionCache) Fresh(now time.Time, ttl time.Duration) bool {
	return !c.UpdatedAt.IsZero() && now.Sub(c.UpdatedAt) <= ttl
}

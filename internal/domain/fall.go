package domain

import "time"

// FallEvent records a fall suffered by a patient.
type FallEvent struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PatientID  string    `json:"patient_id"  gorm:"type:char(36);not null;index:idx_fall_patient,priority:1"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index:idx_fall_patient,priority:2"`
	Location   string    `json:"location"    gorm:"type:varchar(255);not null"`
	Note       string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`

	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FallEvent.
func (FallEvent) TableName() string { return "fall_events" }

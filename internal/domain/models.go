// Package domain defines the persistence models for patients, medications,
// and the dose log. These types are mapped with GORM and form the core data
// layer of the tracker. Dose schedules themselves are derived (see package
// schedule) and are never stored; only outcomes recorded against a scheduled
// timestamp become DoseEvent rows.
package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format for calendar dates (date of birth).
const DateLayout = "2006-01-02"

// Patient is a person whose medications are tracked.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name: display name, required.
//   - DateOfBirth: optional calendar date in DateLayout.
//   - Diagnosis / Allergies / Notes: free text.
//   - EmergencyContact*: optional contact details.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// Patients are hard-deleted together with their medications, dose events and
// fall events (see repo.DeletePatientCascade).
type Patient struct {
	ID                       string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name                     string    `json:"name"        gorm:"type:varchar(255);not null;index:idx_patient_name"`
	Notes                    string    `json:"notes,omitempty" gorm:"type:text"`
	DateOfBirth              *string   `json:"date_of_birth,omitempty" gorm:"type:varchar(10)"`
	Diagnosis                string    `json:"diagnosis,omitempty" gorm:"type:text"`
	Allergies                string    `json:"allergies,omitempty" gorm:"type:text"`
	EmergencyContactName     string    `json:"emergency_contact_name,omitempty" gorm:"type:varchar(255)"`
	EmergencyContactPhone    string    `json:"emergency_contact_phone,omitempty" gorm:"type:varchar(64)"`
	EmergencyContactRelation string    `json:"emergency_contact_relation,omitempty" gorm:"type:varchar(64)"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for Patient.
func (Patient) TableName() string { return "patients" }

// Age returns the patient's age in whole years at now, or nil when the date
// of birth is missing, malformed, or in the future.
func (p Patient) Age(now time.Time) *int {
	if p.DateOfBirth == nil || strings.TrimSpace(*p.DateOfBirth) == "" {
		return nil
	}
	dob, err := time.Parse(DateLayout, strings.TrimSpace(*p.DateOfBirth))
	if err != nil {
		return nil
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return nil
	}
	return &years
}

// Medication is a dosing plan attached to exactly one patient.
//
// Fields:
//   - PatientID: owning patient (FK, cascade on delete).
//   - Name: free text, optionally backed by an RxNorm concept (RxCUI/RxName).
//   - DoseValue / DoseUnit: what is administered per dose ("500", "mg").
//   - FrequencyHours: hours between doses, > 0.
//   - StartTime / EndTime: schedule bounds; EndTime >= StartTime when set.
//   - Active: false while the medication is paused by a caregiver.
type Medication struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	PatientID      string     `json:"patient_id"      gorm:"type:char(36);not null;index:idx_med_patient"`
	Name           string     `json:"name"            gorm:"type:varchar(255);not null"`
	DoseValue      string     `json:"dose_value,omitempty" gorm:"type:varchar(64)"`
	DoseUnit       string     `json:"dose_unit,omitempty"  gorm:"type:varchar(32)"`
	FrequencyHours int        `json:"frequency_hours" gorm:"not null;check:frequency_hours > 0"`
	Notes          string     `json:"notes,omitempty" gorm:"type:text"`
	StartTime      time.Time  `json:"start_time"      gorm:"not null"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	RxCUI          string     `json:"rxcui,omitempty"   gorm:"column:rxcui;type:varchar(32)"`
	RxName         string     `json:"rx_name,omitempty" gorm:"type:varchar(255)"`
	Active         bool       `json:"active"          gorm:"not null"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Patient is the owner. Medications are cascade-deleted with it.
	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Medication.
func (Medication) TableName() string { return "medications" }

// DisplayDose renders value and unit ("500 mg"), or whichever part is set.
func (m Medication) DisplayDose() string {
	return strings.TrimSpace(strings.TrimSpace(m.DoseValue) + " " + strings.TrimSpace(m.DoseUnit))
}

// Ended reports whether the end time has passed at now.
func (m Medication) Ended(now time.Time) bool {
	return m.EndTime != nil && now.After(*m.EndTime)
}

// Dose statuses as shown to caregivers.
const (
	StatusTaken    = "taken"
	StatusSkipped  = "skipped"
	StatusOverdue  = "overdue"
	StatusUpcoming = "upcoming"
)

// DoseEvent is a dose log entry: the recorded outcome of one scheduled dose.
// At most one row exists per (MedicationID, ScheduledUnix).
//
// ScheduledUnix duplicates ScheduledAt as whole seconds so lookups and the
// uniqueness constraint do not depend on the driver's datetime formatting.
type DoseEvent struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	MedicationID  string     `json:"medication_id"  gorm:"type:char(36);not null;uniqueIndex:ux_dose_med_sched,priority:1"`
	ScheduledAt   time.Time  `json:"scheduled_at"   gorm:"not null"`
	ScheduledUnix int64      `json:"-"              gorm:"not null;uniqueIndex:ux_dose_med_sched,priority:2"`
	Taken         bool       `json:"taken"          gorm:"not null"`
	TakenAt       *time.Time `json:"taken_at,omitempty"`
	Skipped       bool       `json:"skipped"        gorm:"not null"`
	Note          string     `json:"note,omitempty" gorm:"type:text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Medication is the scheduled plan. Dose events are cascade-deleted with it.
	Medication Medication `json:"-" gorm:"foreignKey:MedicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DoseEvent.
func (DoseEvent) TableName() string { return "dose_events" }

// DoseStatus classifies a scheduled dose at now given its log entry, which
// may be nil when nothing was recorded yet. A dose scheduled exactly at now
// is already overdue.
func DoseStatus(ev *DoseEvent, scheduledAt, now time.Time) string {
	switch {
	case ev != nil && ev.Skipped:
		return StatusSkipped
	case ev != nil && ev.Taken:
		return StatusTaken
	case !scheduledAt.After(now):
		return StatusOverdue
	default:
		return StatusUpcoming
	}
}

// Resolved reports whether the dose needs no further action.
func (e *DoseEvent) Resolved() bool {
	return e != nil && (e.Taken || e.Skipped)
}

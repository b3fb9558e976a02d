package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/domain"
)

// CreateMedication inserts m, assigning a UUID when m.ID is empty. The owning
// patient must exist (FK).
func CreateMedication(ctx context.Context, db *gorm.DB, m *domain.Medication) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Omit("Patient").Create(m).Error
}

// GetMedication fetches a medication by ID, or ErrNotFound.
func GetMedication(ctx context.Context, db *gorm.DB, id string) (*domain.Medication, error) {
	var m domain.Medication
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMedicationsForPatient returns the patient's medications ordered by
// name, active and paused alike.
func ListMedicationsForPatient(ctx context.Context, db *gorm.DB, patientID string) ([]domain.Medication, error) {
	var out []domain.Medication
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("name asc, id asc").
		Find(&out).Error
	return out, err
}

// ListActiveMedications returns every medication not paused by a caregiver,
// with its Patient preloaded. When patientName is non-blank only patients
// whose name contains it (case-insensitive) are considered. End times are
// not filtered here; callers decide with their own clock.
func ListActiveMedications(ctx context.Context, db *gorm.DB, patientName string) ([]domain.Medication, error) {
	q := db.WithContext(ctx).
		Preload("Patient").
		Joins("JOIN patients ON patients.id = medications.patient_id").
		Where("medications.active = ?", true)
	if strings.TrimSpace(patientName) != "" {
		q = q.Where("LOWER(patients.name) LIKE ?", likePattern(patientName))
	}
	var out []domain.Medication
	err := q.Order("medications.id asc").Find(&out).Error
	return out, err
}

// UpdateMedication overwrites the editable columns of the medication with
// m.ID. Returns ErrNotFound if no row matched.
func UpdateMedication(ctx context.Context, db *gorm.DB, m *domain.Medication) error {
	res := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"name":            m.Name,
			"dose_value":      m.DoseValue,
			"dose_unit":       m.DoseUnit,
			"frequency_hours": m.FrequencyHours,
			"notes":           m.Notes,
			"start_time":      m.StartTime,
			"end_time":        m.EndTime,
			"rxcui":           m.RxCUI,
			"rx_name":         m.RxName,
			"active":          m.Active,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetMedicationActive pauses or resumes a medication. Returns ErrNotFound if
// no row matched.
func SetMedicationActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Patient
// model, including the explicit cascading delete.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a patient is not found, functions return gorm.ErrRecordNotFound
//     (also exported as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/domain"
)

// CreatePatient inserts p, assigning a UUID when p.ID is empty.
func CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(p).Error
}

// GetPatient fetches a single patient by ID, or ErrNotFound.
func GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error) {
	var p domain.Patient
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPatients returns every patient ordered by name.
func ListPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error) {
	var out []domain.Patient
	err := db.WithContext(ctx).Order("name asc, id asc").Find(&out).Error
	return out, err
}

// CountPatients returns the total number of patients.
func CountPatients(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Patient{}).Count(&total).Error
	return total, err
}

// ListPatientsPage returns a page of patients ordered by name. The caller
// computes offset and limit; use CountPatients for pagination metadata.
func ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error) {
	var out []domain.Patient
	err := db.WithContext(ctx).
		Order("name asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PatientNames returns the distinct patient names in alphabetical order.
func PatientNames(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).
		Model(&domain.Patient{}).
		Distinct("name").
		Order("name asc").
		Pluck("name", &names).Error
	return names, err
}

// UpdatePatient overwrites the editable columns of the patient with p.ID.
// Zero values are written too. Returns ErrNotFound if no row matched.
func UpdatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	res := db.WithContext(ctx).
		Model(&domain.Patient{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":                       p.Name,
			"notes":                      p.Notes,
			"date_of_birth":              p.DateOfBirth,
			"diagnosis":                  p.Diagnosis,
			"allergies":                  p.Allergies,
			"emergency_contact_name":     p.EmergencyContactName,
			"emergency_contact_phone":    p.EmergencyContactPhone,
			"emergency_contact_relation": p.EmergencyContactRelation,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePatientCascade removes the patient together with its dose events,
// medications and fall events inside a single transaction. Nothing is
// deleted when the patient does not exist (ErrNotFound).
func DeletePatientCascade(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Patient{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}

		meds := tx.Model(&domain.Medication{}).Select("id").Where("patient_id = ?", id)
		if err := tx.Where("medication_id IN (?)", meds).Delete(&domain.DoseEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&domain.Medication{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&domain.FallEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Patient{}).Error
	})
}

// ResetAll deletes every patient-scoped row. Audit entries, cached
// suggestions and idempotency records are kept.
func ResetAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&domain.DoseEvent{}, &domain.Medication{}, &domain.FallEvent{}, &domain.Patient{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// likePattern builds a case-insensitive substring pattern for LIKE.
func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

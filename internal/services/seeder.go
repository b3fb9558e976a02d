package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

type demoMed struct {
	name        string
	dose        string
	freq        int
	notes       string
	startOffset int  // hours relative to now
	endOffset   *int // hours relative to now
	active      bool
}

type demoPatient struct {
	name, notes, diagnosis, allergies string
	age                               int
	contact                           [3]string // name, phone, relation
	meds                              []demoMed
}

func hours(h int) *int { return &h }

var demoPatients = []demoPatient{
	{
		name: "Maria Alvarez", notes: "Seguimiento HTA y DM2", age: 78,
		diagnosis: "Hipertensión y diabetes tipo 2", allergies: "Penicilina",
		contact: [3]string{"Laura Alvarez", "555-8101", "Hija"},
		meds: []demoMed{
			{"Enalapril", "10mg", 12, "HTA", -10, nil, true},
			{"Metformina", "850mg", 12, "DM2", -6, nil, true},
			{"Simvastatina", "20mg", 24, "Lípidos", -20, nil, true},
		},
	},
	{
		name: "Jorge Ramirez", notes: "Deterioro cognitivo", age: 84,
		diagnosis: "Alzheimer", allergies: "Sin alergias conocidas",
		contact: [3]string{"Sofia Ramirez", "555-8202", "Hija"},
		meds: []demoMed{
			{"Donepezilo", "10mg", 24, "Demencia", -24, nil, true},
			{"Memantina", "10mg", 12, "Demencia", -8, nil, true},
			{"Quetiapina", "25mg", 24, "Conducta nocturna", -2, nil, true},
		},
	},
	{
		name: "Carmen Soto", notes: "EPOC + HTA", age: 90,
		diagnosis: "EPOC e hipertensión", allergies: "AINEs",
		contact: [3]string{"Diego Soto", "555-8303", "Hijo"},
		meds: []demoMed{
			{"Salmeterol", "1 inhalación", 12, "EPOC", -5, nil, true},
			{"Tiotropio", "1 inhalación", 24, "EPOC", -15, nil, true},
			{"Amoxicilina", "500mg", 8, "Exacerbación, antibiótico", -12, hours(24), true},
		},
	},
	{
		name: "Luis Herrera", notes: "ICC y ERC", age: 70,
		diagnosis: "Insuficiencia cardiaca y renal", allergies: "Sulfas",
		contact: [3]string{"Carmen Herrera", "555-8404", "Esposa"},
		meds: []demoMed{
			{"Furosemida", "40mg", 24, "ICC", -26, nil, true},
			{"Carvedilol", "12.5mg", 12, "ICC", -4, nil, true},
			{"Calcio", "600mg", 24, "Suplemento", 2, nil, true},
		},
	},
	{
		name: "Elena Chavez", notes: "Dolor crónico y ánimo", age: 82,
		diagnosis: "Osteoartritis y depresión geriátrica", allergies: "Látex",
		contact: [3]string{"Mario Chavez", "555-8505", "Hijo"},
		meds: []demoMed{
			{"Paracetamol", "500mg", 6, "Dolor", -3, nil, true},
			{"Duloxetina", "60mg", 24, "Ánimo/dolor", -22, nil, true},
			{"Naproxeno", "250mg", 12, "Dolor articular (pausado)", -10, nil, false},
		},
	},
	{
		name: "Rosa Medina", notes: "DM2 con neuropatía", age: 88,
		diagnosis: "Diabetes tipo 2 con neuropatía", allergies: "Sin alergias conocidas",
		contact: [3]string{"Andres Medina", "555-8606", "Nieto"},
		meds: []demoMed{
			{"Insulina NPH", "18U", 12, "DM2", -7, nil, true},
			{"Pregabalina", "75mg", 12, "Neuropatía", -1, nil, true},
		},
	},
}

// Seeder loads the demo data set.
type Seeder struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// SeedDemo wipes all patient data and inserts the demo patients with their
// medications, scheduled relative to the current time. It returns the
// number of patients and medications created.
func (s *Seeder) SeedDemo(ctx context.Context) (patients, medications int, err error) {
	now := stamp(s.Clock.Now())
	if err := repo.ResetAll(ctx, s.DB); err != nil {
		return 0, 0, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dp := range demoPatients {
			dob := fmt.Sprintf("%04d-06-15", now.Year()-dp.age)
			p := &domain.Patient{
				Name:                     dp.name,
				Notes:                    dp.notes,
				DateOfBirth:              &dob,
				Diagnosis:                dp.diagnosis,
				Allergies:                dp.allergies,
				EmergencyContactName:     dp.contact[0],
				EmergencyContactPhone:    dp.contact[1],
				EmergencyContactRelation: dp.contact[2],
			}
			if err := repo.CreatePatient(ctx, tx, p); err != nil {
				return err
			}
			patients++
			for _, dm := range dp.meds {
				value, unit := SplitDose(dm.dose)
				m := &domain.Medication{
					PatientID:      p.ID,
					Name:           dm.name,
					DoseValue:      value,
					DoseUnit:       unit,
					FrequencyHours: dm.freq,
					Notes:          dm.notes,
					StartTime:      now.Add(time.Duration(dm.startOffset) * time.Hour),
					Active:         dm.active,
				}
				if dm.endOffset != nil {
					end := now.Add(time.Duration(*dm.endOffset) * time.Hour)
					m.EndTime = &end
				}
				if err := repo.CreateMedication(ctx, tx, m); err != nil {
					return err
				}
				medications++
			}
		}
		return record(ctx, tx, s.Clock, ActionSeedDemo, EntitySystem, "", map[string]any{
			"patients":    patients,
			"medications": medications,
		})
	})
	if err != nil {
		return 0, 0, err
	}
	return patients, medications, nil
}

// SplitDose separates a compact dose such as "12.5mg" into value and unit.
// Text without a leading number is returned as the unit.
func SplitDose(s string) (value, unit string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' && r != ',' })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

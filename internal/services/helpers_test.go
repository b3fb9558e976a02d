package services

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/repo"
)

// baseNow is 2025-03-10 17:30 UTC, a Monday.
var baseNow = time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// dbPatientRepo forwards to the package-level repo functions.
type dbPatientRepo struct{}

func (dbPatientRepo) CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.CreatePatient(ctx, db, p)
}
func (dbPatientRepo) GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error) {
	return repo.GetPatient(ctx, db, id)
}
func (dbPatientRepo) ListPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error) {
	return repo.ListPatients(ctx, db)
}
func (dbPatientRepo) CountPatients(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPatients(ctx, db)
}
func (dbPatientRepo) ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error) {
	return repo.ListPatientsPage(ctx, db, offset, limit)
}
func (dbPatientRepo) UpdatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.UpdatePatient(ctx, db, p)
}
func (dbPatientRepo) DeletePatientCascade(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePatientCascade(ctx, db, id)
}

type fixture struct {
	db    *gorm.DB
	clk   clock.Clock
	pats  *PatientService
	meds  *MedicationService
	doses *DoseService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db := newSvcDB(t)
	clk := clock.Fixed{T: now}
	return &fixture{
		db:    db,
		clk:   clk,
		pats:  NewPatientService(db, dbPatientRepo{}, clk),
		meds:  &MedicationService{DB: db, Clock: clk},
		doses: &DoseService{DB: db, Clock: clk},
	}
}

func (f *fixture) patient(t *testing.T, name string) *domain.Patient {
	t.Helper()
	p, err := f.pats.Create(context.Background(), PatientInput{Name: name})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func (f *fixture) medication(t *testing.T, patientID, name string, start time.Time, freq int, end *time.Time) *domain.Medication {
	t.Helper()
	m, err := f.meds.Create(context.Background(), patientID, MedicationInput{
		Name: name, DoseValue: "500", DoseUnit: "mg", FrequencyHours: freq,
		StartTime: &start, EndTime: end,
	})
	if err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return m
}

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/search"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/web"
)

// baseNow is 2025-03-10 17:30 UTC.
var baseNow = time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:handlers_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testPatientRepo implements services.PatientRepo with the repo package.
type testPatientRepo struct{}

func (testPatientRepo) CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.CreatePatient(ctx, db, p)
}
func (testPatientRepo) GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error) {
	return repo.GetPatient(ctx, db, id)
}
func (testPatientRepo) ListPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error) {
	return repo.ListPatients(ctx, db)
}
func (testPatientRepo) CountPatients(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPatients(ctx, db)
}
func (testPatientRepo) ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error) {
	return repo.ListPatientsPage(ctx, db, offset, limit)
}
func (testPatientRepo) UpdatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.UpdatePatient(ctx, db, p)
}
func (testPatientRepo) DeletePatientCascade(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePatientCascade(ctx, db, id)
}

type testEnv struct {
	db *gorm.DB
	r  *gin.Engine
}

// newTestEnv wires real services over a fresh in-memory database, frozen at
// baseNow, and mounts the API under /api and the pages at the root.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	clk := clock.Fixed{T: baseNow}
	idem := &services.IdempotencyService{DB: db, Clock: clk, TTL: time.Hour}

	h := New(Services{
		Patients:    services.NewPatientService(db, testPatientRepo{}, clk),
		Medications: &services.MedicationService{DB: db, Clock: clk},
		Doses:       &services.DoseService{DB: db, Clock: clk},
		Alerts:      &services.AlertService{DB: db, Clock: clk},
		Adherence:   &services.AdherenceService{DB: db, Clock: clk},
		Falls:       &services.FallService{DB: db, Clock: clk},
		Audit:       &services.AuditService{DB: db, Clock: clk},
		Suggestions: &services.SuggestionService{DB: db, Clock: clk, Index: search.NewIndex(search.DefaultVocabulary())},
		Seeder:      &services.Seeder{DB: db, Clock: clk},
		Idempotency: idem,
	}, WithAPIBase("/api"), WithRoleSwitch(true))

	r := gin.New()
	r.SetHTMLTemplate(web.MustTemplates())
	r.Use(middleware.RequestID(), middleware.Roles(true))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{Now: clk.Now}, idem.Lookup))

	api := r.Group("/api")
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
	api.GET("/patients/:id/today", h.PatientToday)
	api.GET("/patients/:id/adherence", h.PatientAdherence)
	api.GET("/patients/:id/falls", h.ListFalls)
	api.POST("/patients/:id/falls", h.RecordFall)
	api.POST("/patients/:id/medications", h.CreateMedication)
	api.GET("/patients/:id/medications", h.ListMedications)
	api.GET("/medications/:id", h.GetMedication)
	api.PUT("/medications/:id", h.UpdateMedication)
	api.POST("/medications/:id/active", h.SetMedicationActive)
	api.GET("/medications/:id/doses", h.MedicationDoses)
	api.POST("/medications/:id/doses/take", h.TakeDose)
	api.POST("/medications/:id/doses/skip", h.SkipDose)
	api.POST("/medications/:id/doses/undo", h.UndoDose)
	api.POST("/medications/:id/doses/note", h.NoteDose)
	api.GET("/medications/:id/doses/status", h.DoseStatus)
	api.GET("/alerts", h.ListAlerts)
	api.GET("/adherence", h.AdherenceDashboard)
	api.GET("/audit", h.ListAudit)
	api.GET("/suggest", h.Suggest)
	api.POST("/dev/seed", h.SeedDemo)

	r.GET("/", h.PatientsPage)
	r.GET("/patients/:id", h.PatientPage)
	r.GET("/alerts", h.AlertsPage)

	return &testEnv{db: db, r: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, isRaw := body.(string); isRaw {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func (e *testEnv) createPatient(t *testing.T, name string) domain.Patient {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/patients", map[string]any{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create patient: %d %s", w.Code, w.Body.String())
	}
	return decode[domain.Patient](t, w)
}

// createMedication adds a 500 mg medication starting at 08:00 on baseNow's day.
func (e *testEnv) createMedication(t *testing.T, patientID, name string, freq int) domain.Medication {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/patients/"+patientID+"/medications", map[string]any{
		"name": name, "dose_value": "500", "dose_unit": "mg",
		"frequency_hours": freq, "start_time": "2025-03-10T08:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create medication: %d %s", w.Code, w.Body.String())
	}
	return decode[domain.Medication](t, w)
}

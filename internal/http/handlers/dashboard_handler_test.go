package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/services"
)

func TestAlerts_LatestMissedDoseAndFilter(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	m := e.createMedication(t, p.ID, "Enalapril", 8)

	w := e.do(t, http.MethodGet, "/api/alerts", nil)
	resp := decode[AlertsResponse](t, w)
	if w.Code != http.StatusOK || resp.Count != 1 || len(resp.Alerts) != 1 {
		t.Fatalf("alerts: %d %+v", w.Code, resp)
	}
	if a := resp.Alerts[0]; a.MedicationID != m.ID || a.LateMinutes != 90 || a.PatientName != "Maria" {
		t.Fatalf("alert: %+v", a)
	}

	if r := decode[AlertsResponse](t, e.do(t, http.MethodGet, "/api/alerts?patient_name=jose", nil)); r.Count != 0 {
		t.Fatalf("filter: %+v", r)
	}
	if r := decode[AlertsResponse](t, e.do(t, http.MethodGet, "/api/alerts?patient_name=mar", nil)); r.Count != 1 {
		t.Fatalf("partial filter: %+v", r)
	}

	e.do(t, http.MethodPost, "/api/medications/"+m.ID+"/doses/take", map[string]any{"scheduled_at": "2025-03-10T16:00:00Z"})
	if r := decode[AlertsResponse](t, e.do(t, http.MethodGet, "/api/alerts", nil)); r.Count != 0 || r.Alerts == nil {
		t.Fatalf("taken dose must clear the alert: %+v", r)
	}
}

func TestAdherence_Endpoints(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	e.createPatient(t, "Ana")
	m := e.createMedication(t, p.ID, "Enalapril", 8)
	e.do(t, http.MethodPost, "/api/medications/"+m.ID+"/doses/take", map[string]any{"scheduled_at": "2025-03-10T08:00:00Z"})

	w := e.do(t, http.MethodGet, "/api/patients/"+p.ID+"/adherence", nil)
	a := decode[services.Adherence](t, w)
	if w.Code != http.StatusOK || a.Taken != 1 || a.Overdue != 1 || a.Percent == nil || *a.Percent != 50 {
		t.Fatalf("patient adherence: %d %+v", w.Code, a)
	}

	w = e.do(t, http.MethodGet, "/api/adherence", nil)
	rows := decode[[]services.Adherence](t, w)
	if w.Code != http.StatusOK || len(rows) != 2 || rows[0].PatientName != "Maria" || rows[1].Percent != nil {
		t.Fatalf("dashboard: %d %+v", w.Code, rows)
	}

	w = e.do(t, http.MethodGet, "/api/patients/00000000-0000-4000-8000-000000000000/adherence", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown patient: %d", w.Code)
	}
}

func TestAudit_RecordsActorAndFilters(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	e.do(t, http.MethodPost, "/api/patients/"+p.ID+"/medications",
		map[string]any{"name": "Calcio", "frequency_hours": 24}, "X-Role", "CARE_ADMIN")

	w := e.do(t, http.MethodGet, "/api/audit", nil)
	all := decode[[]domain.AuditLog](t, w)
	if w.Code != http.StatusOK || len(all) != 2 {
		t.Fatalf("audit: %d %+v", w.Code, all)
	}

	w = e.do(t, http.MethodGet, "/api/audit?entity_type=medication", nil)
	meds := decode[[]domain.AuditLog](t, w)
	if len(meds) != 1 || meds[0].ActorRole != "CARE_ADMIN" || meds[0].Action != services.ActionCreate {
		t.Fatalf("filtered audit: %+v", meds)
	}
}

func TestSuggest_FallsBackToLocalVocabulary(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/suggest?query=as", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" || w.Header().Get("X-Suggestion-Source") != "none" {
		t.Fatalf("short query: %d %q %v", w.Code, w.Body.String(), w.Header())
	}

	w = e.do(t, http.MethodGet, "/api/suggest?query=Aspir", nil)
	got := decode[[]domain.Suggestion](t, w)
	if w.Code != http.StatusOK || len(got) == 0 || got[0].Name != "aspirin" || got[0].Code != "1191" {
		t.Fatalf("local suggestions: %d %+v", w.Code, got)
	}
	if src := w.Header().Get("X-Suggestion-Source"); src != "local" {
		t.Fatalf("source = %q", src)
	}
}

func TestSeedDemo_ResetsAndLoads(t *testing.T) {
	e := newTestEnv(t)
	e.createPatient(t, "Temporary")

	w := e.do(t, http.MethodPost, "/api/dev/seed", nil)
	if r := decode[SeedResponse](t, w); w.Code != http.StatusCreated || r.Patients != 6 || r.Medications != 17 {
		t.Fatalf("seed: %d %+v", w.Code, r)
	}
	list := decode[ListPatientsResponse](t, e.do(t, http.MethodGet, "/api/patients?page_size=100", nil))
	if list.Pagination.Total != 6 {
		t.Fatalf("patients after seed = %d", list.Pagination.Total)
	}
	for _, p := range list.Patients {
		if p.Name == "Temporary" {
			t.Fatal("seed must reset existing data")
		}
	}

	r := gin.New()
	r.POST("/seed", New(Services{}).SeedDemo)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/seed", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("no seeder: %d", w.Code)
	}
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/healthline/internal/domain"
)

func TestMedications_CreateListGetUpdate(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")

	m := e.createMedication(t, p.ID, "Enalapril", 8)
	if m.PatientID != p.ID || !m.Active || m.FrequencyHours != 8 {
		t.Fatalf("unexpected medication: %+v", m)
	}

	w := e.do(t, http.MethodGet, "/api/patients/"+p.ID+"/medications", nil)
	meds := decode[[]domain.Medication](t, w)
	if w.Code != http.StatusOK || len(meds) != 1 || meds[0].ID != m.ID {
		t.Fatalf("list: %d %+v", w.Code, meds)
	}

	w = e.do(t, http.MethodGet, "/api/medications/"+m.ID, nil)
	if w.Code != http.StatusOK || decode[domain.Medication](t, w).Name != "Enalapril" {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPut, "/api/medications/"+m.ID, map[string]any{
		"name": "Enalapril", "dose_value": "10", "dose_unit": "mg", "frequency_hours": 12,
		"start_time": "2025-03-10T08:00:00Z",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if up := decode[domain.Medication](t, w); up.FrequencyHours != 12 || up.DisplayDose() != "10 mg" {
		t.Fatalf("update not applied: %+v", up)
	}

	w = e.do(t, http.MethodPut, "/api/medications/"+m.ID, map[string]any{"name": "Enalapril", "frequency_hours": 0})
	if w.Code != http.StatusBadRequest || decode[ErrorResponse](t, w).Code != ErrCodeValidation {
		t.Fatalf("zero frequency: %d %s", w.Code, w.Body.String())
	}
}

func TestMedications_CreateErrors(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")

	missing := "00000000-0000-4000-8000-000000000000"
	w := e.do(t, http.MethodPost, "/api/patients/"+missing+"/medications", map[string]any{"name": "X", "frequency_hours": 8})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown patient: %d %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/api/patients/"+p.ID+"/medications", map[string]any{"name": "X", "frequency_hours": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative frequency: %d", w.Code)
	}
	w = e.do(t, http.MethodPost, "/api/patients/"+p.ID+"/medications", map[string]any{"name": "X", "frequency_hours": 1 << 51})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized frequency: %d", w.Code)
	}
	if w = e.do(t, http.MethodGet, "/api/alerts", nil); w.Code != http.StatusOK {
		t.Fatalf("alerts after rejected create: %d", w.Code)
	}
	w = e.do(t, http.MethodPost, "/api/patients/"+p.ID+"/medications", map[string]any{
		"name": "X", "frequency_hours": 8,
		"start_time": "2025-03-10T08:00:00Z", "end_time": "2025-03-09T08:00:00Z",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("end before start: %d", w.Code)
	}
	if w = e.do(t, http.MethodGet, "/api/medications/"+missing, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown medication: %d", w.Code)
	}
}

func TestMedications_PauseResume(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	m := e.createMedication(t, p.ID, "Naproxeno", 12)

	w := e.do(t, http.MethodPost, "/api/medications/"+m.ID+"/active", map[string]any{"active": false})
	if w.Code != http.StatusOK || decode[domain.Medication](t, w).Active {
		t.Fatalf("pause: %d %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/api/medications/"+m.ID+"/active", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing flag: %d", w.Code)
	}
	w = e.do(t, http.MethodPost, "/api/medications/"+m.ID+"/active", map[string]any{"active": true})
	if w.Code != http.StatusOK || !decode[domain.Medication](t, w).Active {
		t.Fatalf("resume: %d %s", w.Code, w.Body.String())
	}
}

func TestMedications_DoseWindow(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	m := e.createMedication(t, p.ID, "Enalapril", 8)

	w := e.do(t, http.MethodGet, "/api/medications/"+m.ID+"/doses?past=2&next=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("doses: %d %s", w.Code, w.Body.String())
	}
	resp := decode[MedicationDosesResponse](t, w)
	if len(resp.Doses) != 3 {
		t.Fatalf("doses = %d, want 3: %+v", len(resp.Doses), resp.Doses)
	}
	if resp.Doses[1].Status != domain.StatusOverdue || resp.Doses[2].Status != domain.StatusUpcoming {
		t.Fatalf("statuses: %+v", resp.Doses)
	}
	if resp.Medication == nil || resp.Medication.ID != m.ID || len(resp.History) != 0 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestMedications_ListETag(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	e.createMedication(t, p.ID, "Enalapril", 8)

	path := "/api/patients/" + p.ID + "/medications"
	w := e.do(t, http.MethodGet, path, nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("list: %d etag=%q", w.Code, etag)
	}

	w = e.do(t, http.MethodGet, path, nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	e.createMedication(t, p.ID, "Metformin", 12)
	w = e.do(t, http.MethodGet, path, nil, "If-None-Match", etag)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("new medication must change the ETag: %d %q", w.Code, w.Header().Get("ETag"))
	}
}

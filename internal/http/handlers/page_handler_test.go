package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestPages_Render(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	m := e.createMedication(t, p.ID, "Enalapril", 8)

	w := e.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Maria") {
		t.Fatalf("patients page: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `data-api="/api/patients"`) {
		t.Fatal("nurse should see the create form")
	}

	w = e.do(t, http.MethodGet, "/patients/"+p.ID, nil)
	body := w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, "Enalapril") || !strings.Contains(body, "500 mg") {
		t.Fatalf("patient page: %d %s", w.Code, body)
	}
	if !strings.Contains(body, "/api/medications/"+m.ID+"/doses/take") {
		t.Fatal("nurse should see dose actions")
	}

	w = e.do(t, http.MethodGet, "/alerts", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "90 min") {
		t.Fatalf("alerts page: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `<option value="Maria">`) {
		t.Fatal("alert filter should suggest patient names")
	}
}

func TestPages_FamilyIsReadOnly(t *testing.T) {
	e := newTestEnv(t)
	p := e.createPatient(t, "Maria")
	e.createMedication(t, p.ID, "Enalapril", 8)

	w := e.do(t, http.MethodGet, "/patients/"+p.ID+"?role=FAMILY", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("patient page: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "/doses/take") {
		t.Fatal("family must not see dose actions")
	}
}

func TestPages_NotFound(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/patients/00000000-0000-4000-8000-000000000000", "/patients/nope"} {
		w := e.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "patient not found") {
			t.Fatalf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}
}

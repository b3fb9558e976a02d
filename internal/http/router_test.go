package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/config"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/handlers"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/search"
)

var routerNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      50,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, Deps{
		Clock: clock.Fixed{T: routerNow},
		Index: search.NewIndex(search.DefaultVocabulary()),
	}, cfg)
	return r, db
}

func serve(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Fatalf("missing CSP, got %q", w.Header().Get("Content-Security-Policy"))
	}

	w = serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = serve(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func TestRegisterRoutes_RoleGate(t *testing.T) {
	cfg := testConfig()
	cfg.DebugRoles = true
	r, _ := newRouter(t, cfg)

	w := serve(r, http.MethodPost, "/api/v1/patients", `{"name":"Ada Lovelace"}`, middleware.HeaderRole, middleware.RoleFamily)
	if w.Code != http.StatusForbidden {
		t.Fatalf("FAMILY create expected 403, got %d: %s", w.Code, w.Body.String())
	}

	// reads stay open to every role
	w = serve(r, http.MethodGet, "/api/v1/patients", "", middleware.HeaderRole, middleware.RoleFamily)
	if w.Code != http.StatusOK {
		t.Fatalf("FAMILY list expected 200, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/api/v1/patients", `{"name":"Ada Lovelace"}`, middleware.HeaderRole, middleware.RoleNurse)
	if w.Code != http.StatusCreated {
		t.Fatalf("NURSE create expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_RoleHeaderIgnoredWithoutDebugRoles(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// X-Role is not honoured, so the default nurse role applies
	w := serve(r, http.MethodPost, "/api/v1/patients", `{"name":"Grace Hopper"}`, middleware.HeaderRole, middleware.RoleFamily)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// the demo seeder is only mounted in role-switch mode
	w = serve(r, http.MethodPost, "/api/v1/dev/seed", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for /dev/seed, got %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotentCreateReplays(t *testing.T) {
	r, db := newRouter(t, testConfig())

	body := `{"name":"Ada Lovelace"}`
	first := serve(r, http.MethodPost, "/api/v1/patients", body, middleware.HeaderIdempotencyKey, "create-ada")
	if first.Code != http.StatusCreated {
		t.Fatalf("first create expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := serve(r, http.MethodPost, "/api/v1/patients", body, middleware.HeaderIdempotencyKey, "create-ada")
	if second.Code != http.StatusOK {
		t.Fatalf("replay expected 200, got %d: %s", second.Code, second.Body.String())
	}
	if second.Header().Get(handlers.HeaderReplayed) != "true" {
		t.Fatalf("expected %s header on replay", handlers.HeaderReplayed)
	}

	var a, b domain.Patient
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("replay returned another patient: %q vs %q", a.ID, b.ID)
	}

	var n int64
	if err := db.Model(&domain.Patient{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 patient, got %d", n)
	}
}

func TestRegisterRoutes_PagesAndStatic(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("GET / got %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = serve(r, http.MethodGet, "/alerts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /alerts got %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/static/autocomplete.js", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /static/autocomplete.js got %d len=%d", w.Code, w.Body.Len())
	}
}

func TestRegisterRoutes_SwaggerDoc(t *testing.T) {
	cfg := testConfig()
	r, _ := newRouter(t, cfg)
	if w := serve(r, http.MethodGet, "/swagger-doc.json", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled: expected 404, got %d", w.Code)
	}

	cfg.SwaggerEnabled = true
	r, _ = newRouter(t, cfg)
	w := serve(r, http.MethodGet, "/swagger-doc.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger-doc.json got %d", w.Code)
	}
	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode swagger doc: %v", err)
	}
	if doc.BasePath != "/api/v1" {
		t.Fatalf("basePath = %q", doc.BasePath)
	}
	if _, ok := doc.Paths["/medications/{id}/doses/take"]; !ok {
		t.Fatalf("swagger doc lacks the take-dose path")
	}
}

func Test_patientRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := patientRepoShim{}
	ctx := context.Background()

	for _, name := range []string{"Carol", "Alice", "Bob"} {
		p := &domain.Patient{ID: uuid.NewString(), Name: name}
		if err := shim.CreatePatient(ctx, db, p); err != nil {
			t.Fatalf("CreatePatient %s: %v", name, err)
		}
	}

	all, err := shim.ListPatients(ctx, db)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListPatients: %d %v", len(all), err)
	}

	n, err := shim.CountPatients(ctx, db)
	if err != nil || n != 3 {
		t.Fatalf("CountPatients: %d %v", n, err)
	}

	page, err := shim.ListPatientsPage(ctx, db, 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListPatientsPage: %d %v", len(page), err)
	}

	got, err := shim.GetPatient(ctx, db, all[0].ID)
	if err != nil || got.ID != all[0].ID {
		t.Fatalf("GetPatient: %+v %v", got, err)
	}

	got.Diagnosis = "hypertension"
	if err := shim.UpdatePatient(ctx, db, got); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	again, err := shim.GetPatient(ctx, db, got.ID)
	if err != nil || again.Diagnosis != "hypertension" {
		t.Fatalf("UpdatePatient not persisted: %+v %v", again, err)
	}

	if err := shim.DeletePatientCascade(ctx, db, got.ID); err != nil {
		t.Fatalf("DeletePatientCascade: %v", err)
	}
	if n, _ := shim.CountPatients(ctx, db); n != 2 {
		t.Fatalf("expected 2 patients after delete, got %d", n)
	}
}

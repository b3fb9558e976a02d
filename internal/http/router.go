// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, roles, logging/redaction, panic recovery,
// metrics, compression, CORS, security headers, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/healthline/docs"
	"github.com/tbourn/healthline/internal/clock"
	"github.com/tbourn/healthline/internal/config"
	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/handlers"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/repo"
	"github.com/tbourn/healthline/internal/search"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/web"
)

// patientRepoShim adapts the repository free functions to the
// services.PatientRepo interface expected by the PatientService.
type patientRepoShim struct{}

func (patientRepoShim) CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.CreatePatient(ctx, db, p)
}

func (patientRepoShim) GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error) {
	return repo.GetPatient(ctx, db, id)
}

func (patientRepoShim) ListPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error) {
	return repo.ListPatients(ctx, db)
}

func (patientRepoShim) CountPatients(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountPatients(ctx, db)
}

func (patientRepoShim) ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error) {
	return repo.ListPatientsPage(ctx, db, offset, limit)
}

func (patientRepoShim) UpdatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	return repo.UpdatePatient(ctx, db, p)
}

func (patientRepoShim) DeletePatientCascade(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePatientCascade(ctx, db, id)
}

// Deps are the collaborators built outside the router.
type Deps struct {
	// Clock is the logical clock; nil means the wall clock shifted by
	// cfg.TimeOffsetMinutes.
	Clock clock.Clock
	// Index is the local vocabulary used when remote lookups fail.
	Index search.Index
	// Lookup resolves medication names remotely; nil disables it.
	Lookup services.Lookup
}

// contentSecurityPolicy allows the embedded pages and the Swagger UI.
const contentSecurityPolicy = "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; frame-ancestors 'none'"

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Roles: resolve the acting role (logged and used as idempotency actor)
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Gzip
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per role and IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	clk := deps.Clock
	if clk == nil {
		clk = clock.New(cfg.TimeOffsetMinutes)
	}
	idem := &services.IdempotencyService{DB: db, Clock: clk, TTL: cfg.IdempotencyTTL}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Roles(cfg.DebugRoles))
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200, Now: clk.Now},
		idem.Lookup,
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRoleAndIP())
	r.Use(rl.Handler())

	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRole, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		CSP:          contentSecurityPolicy,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger-doc.json", func(c *gin.Context) {
			doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
			if err != nil {
				handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal, err.Error())
				return
			}
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
		})
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger-doc.json")))
	}

	// Dependency injection: services ← repo/db/index/clock
	h := handlers.New(handlers.Services{
		Patients:    services.NewPatientService(db, patientRepoShim{}, clk),
		Medications: &services.MedicationService{DB: db, Clock: clk},
		Doses:       &services.DoseService{DB: db, Clock: clk},
		Alerts:      &services.AlertService{DB: db, Clock: clk},
		Adherence:   &services.AdherenceService{DB: db, Clock: clk},
		Falls:       &services.FallService{DB: db, Clock: clk},
		Audit:       &services.AuditService{DB: db, Clock: clk},
		Suggestions: &services.SuggestionService{
			DB: db, Clock: clk, Lookup: deps.Lookup, Index: deps.Index, TTL: cfg.RxNorm.CacheTTL,
		},
		Seeder:      &services.Seeder{DB: db, Clock: clk},
		Idempotency: idem,
	}, handlers.WithAPIBase(cfg.APIBasePath), handlers.WithRoleSwitch(cfg.DebugRoles))

	// Pages
	r.SetHTMLTemplate(web.MustTemplates())
	r.StaticFS("/static", web.Static())
	r.GET("/", h.PatientsPage)
	r.GET("/patients/:id", h.PatientPage)
	r.GET("/alerts", h.AlertsPage)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/patients", h.ListPatients)
		api.GET("/patients/:id", h.GetPatient)
		api.GET("/patients/:id/today", h.PatientToday)
		api.GET("/patients/:id/adherence", h.PatientAdherence)
		api.GET("/patients/:id/falls", h.ListFalls)
		api.GET("/patients/:id/medications", h.ListMedications)
		api.GET("/medications/:id", h.GetMedication)
		api.GET("/medications/:id/doses", h.MedicationDoses)
		api.GET("/medications/:id/doses/status", h.DoseStatus)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/adherence", h.AdherenceDashboard)
		api.GET("/audit", h.ListAudit)
		api.GET("/suggest", h.Suggest)

		// Caregiver mutations
		care := api.Group("", middleware.RequireRole(middleware.RoleCareAdmin, middleware.RoleNurse))
		care.POST("/patients", h.CreatePatient)
		care.PUT("/patients/:id", h.UpdatePatient)
		care.DELETE("/patients/:id", h.DeletePatient)
		care.POST("/patients/:id/falls", h.RecordFall)
		care.POST("/patients/:id/medications", h.CreateMedication)
		care.PUT("/medications/:id", h.UpdateMedication)
		care.POST("/medications/:id/active", h.SetMedicationActive)
		care.POST("/medications/:id/doses/take", h.TakeDose)
		care.POST("/medications/:id/doses/skip", h.SkipDose)
		care.POST("/medications/:id/doses/undo", h.UndoDose)
		care.POST("/medications/:id/doses/note", h.NoteDose)

		if cfg.DebugRoles {
			api.POST("/dev/seed", middleware.RequireRole(middleware.RoleCareAdmin), h.SeedDemo)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// Cross-patient HTTP handlers: overdue alerts, the adherence dashboard,
// the audit trail, medication name suggestions and the demo seed.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/utils"
)

// AlertsResponse lists overdue doses.
type AlertsResponse struct {
	Alerts []services.Alert `json:"alerts"`
	Count  int              `json:"count"`
}

// SeedResponse reports what the demo seed created.
type SeedResponse struct {
	Patients    int `json:"patients"`
	Medications int `json:"medications"`
}

// ListAlerts godoc
// @ID          listAlerts
// @Summary     Overdue doses
// @Description Lists every due dose that is neither taken nor skipped, most overdue first. Paused and ended medications are ignored.
// @Tags        Dashboard
// @Produce     json
// @Param       patient_name  query  string  false  "Restrict to patients whose name contains this text"
// @Success     200  {object} handlers.AlertsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /alerts [get]
func (h *Handlers) ListAlerts(c *gin.Context) {
	filter := strings.TrimSpace(c.Query("patient_name"))
	alerts, err := h.svc.Alerts.Overdue(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if filter == "" {
		middleware.SetOverdueDoses(len(alerts))
	}
	ok(c, http.StatusOK, AlertsResponse{Alerts: alerts, Count: len(alerts)})
}

// AdherenceDashboard godoc
// @ID          adherenceDashboard
// @Summary     Adherence of every patient
// @Description Per-patient 7-day summary sorted by overdue count (desc) then adherence (asc).
// @Tags        Dashboard
// @Produce     json
// @Success     200  {array}  services.Adherence
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /adherence [get]
func (h *Handlers) AdherenceDashboard(c *gin.Context) {
	rows, err := h.svc.Adherence.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rows)
}

// ListAudit godoc
// @ID          listAudit
// @Summary     Audit trail
// @Description Latest caregiver actions, newest first.
// @Tags        Dashboard
// @Produce     json
// @Param       entity_type  query  string  false  "Filter by entity"  Enums(patient, medication, dose_event, fall_event, system)
// @Param       limit        query  int     false  "Max items"         minimum(1) maximum(500) default(100)
// @Success     200  {array}  domain.AuditLog
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /audit [get]
func (h *Handlers) ListAudit(c *gin.Context) {
	logs, err := h.svc.Audit.ListRecent(c.Request.Context(),
		strings.TrimSpace(c.Query("entity_type")), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, logs)
}

// Suggest godoc
// @ID          suggestMedications
// @Summary     Medication name suggestions
// @Description Returns up to 10 {name, code} pairs for a query of at least 3 characters. Never fails: lookup errors yield an empty list.
// @Tags        Medications
// @Produce     json
// @Param       query  query  string  true  "Partial medication name"  example(asp)
// @Success     200  {array}  domain.Suggestion
// @Header      200  {string} X-Suggestion-Source "cache, remote, local or none"
// @Router      /suggest [get]
func (h *Handlers) Suggest(c *gin.Context) {
	items, source := h.svc.Suggestions.Suggest(c.Request.Context(), c.Query("query"))
	if items == nil {
		items = []domain.Suggestion{}
	}
	middleware.ObserveSuggestion(source)
	c.Header("X-Suggestion-Source", source)
	ok(c, http.StatusOK, items)
}

// SeedDemo godoc
// @ID          seedDemo
// @Summary     Reset and load demo data
// @Description Deletes every record and loads the demo patients. Only mounted when role switching is enabled.
// @Tags        Dev
// @Produce     json
// @Success     201  {object} handlers.SeedResponse
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /dev/seed [post]
func (h *Handlers) SeedDemo(c *gin.Context) {
	if h.svc.Seeder == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "seeding is disabled")
		return
	}
	p, m, err := h.svc.Seeder.SeedDemo(actorCtx(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSeedFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, SeedResponse{Patients: p, Medications: m})
}

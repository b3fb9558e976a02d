// Caregiver pages.
//
// The pages are rendered on the server from the same services as the JSON
// API; their forms post to the API from the browser (see web/static/app.js).
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/services"
)

type pageBase struct {
	Title      string
	APIBase    string
	Role       string
	Roles      []string
	RoleSwitch bool
	CanEdit    bool
	AlertCount int
}

type patientsPage struct {
	pageBase
	Rows []services.Adherence
}

type patientPage struct {
	pageBase
	Patient     *domain.Patient
	Adherence   *services.Adherence
	Today       *services.DayPlan
	Medications []domain.Medication
	Falls       []domain.FallEvent
}

type alertsPage struct {
	pageBase
	Filter string
	Alerts []services.Alert
	Names  []string
}

type errorPage struct {
	pageBase
	Message string
}

func (h *Handlers) base(c *gin.Context, title string) pageBase {
	role := middleware.RoleFrom(c)
	b := pageBase{
		Title:      title,
		APIBase:    h.apiBase,
		Role:       role,
		Roles:      []string{middleware.RoleCareAdmin, middleware.RoleNurse, middleware.RoleFamily},
		RoleSwitch: h.roleSwitch,
		CanEdit:    role == middleware.RoleCareAdmin || role == middleware.RoleNurse,
	}
	if alerts, err := h.svc.Alerts.Overdue(c.Request.Context(), ""); err == nil {
		b.AlertCount = len(alerts)
	}
	return b
}

func (h *Handlers) renderError(c *gin.Context, status int, err error) {
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	} else {
		middleware.LoggerFrom(c).Error().Err(err).Msg("page error")
	}
	b := h.base(c, http.StatusText(status))
	c.HTML(status, "error.html", errorPage{pageBase: b, Message: msg})
}

func pageStatus(err error) int {
	if services.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// PatientsPage renders the patient list with each patient's adherence.
func (h *Handlers) PatientsPage(c *gin.Context) {
	rows, err := h.svc.Adherence.Dashboard(c.Request.Context())
	if err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	c.HTML(http.StatusOK, "patients.html", patientsPage{pageBase: h.base(c, "Patients"), Rows: rows})
}

// PatientPage renders one patient: today's doses, medications and falls.
func (h *Handlers) PatientPage(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.renderError(c, http.StatusNotFound, services.ErrPatientNotFound)
		return
	}
	p, err := h.svc.Patients.Get(ctx, id)
	if err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	page := patientPage{pageBase: h.base(c, p.Name), Patient: p}
	if page.Adherence, err = h.svc.Adherence.ForPatient(ctx, id); err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	if page.Today, err = h.svc.Doses.Today(ctx, id); err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	if page.Medications, err = h.svc.Medications.ListForPatient(ctx, id); err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	if page.Falls, err = h.svc.Falls.List(ctx, id, 20); err != nil {
		h.renderError(c, pageStatus(err), err)
		return
	}
	c.HTML(http.StatusOK, "patient.html", page)
}

// AlertsPage renders the overdue doses, optionally filtered by patient name.
func (h *Handlers) AlertsPage(c *gin.Context) {
	filter := strings.TrimSpace(c.Query("patient_name"))
	alerts, err := h.svc.Alerts.Overdue(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, http.StatusInternalServerError, err)
		return
	}
	names, err := h.svc.Patients.Names(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("patient names for alert filter")
	}
	b := h.base(c, "Alerts")
	if filter == "" {
		middleware.SetOverdueDoses(len(alerts))
	}
	c.HTML(http.StatusOK, "alerts.html", alertsPage{pageBase: b, Filter: filter, Alerts: alerts, Names: names})
}

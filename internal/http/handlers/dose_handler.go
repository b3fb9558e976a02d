// Dose log HTTP handlers.
//
// A dose is addressed by its medication and scheduled timestamp; the
// timestamp must fall on the medication's schedule. Marking a dose that is
// already taken changes nothing and answers 200 with the stored entry.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/http/middleware"
	"github.com/tbourn/healthline/internal/services"
)

// DoseActionRequest addresses one scheduled dose. TakenAt is read by take
// only and defaults to now; Note by note only.
type DoseActionRequest struct {
	ScheduledAt string `json:"scheduled_at" example:"2025-03-10T08:00:00Z"`
	TakenAt     string `json:"taken_at,omitempty" example:"2025-03-10T08:05:00Z"`
	Note        string `json:"note,omitempty" example:"taken with breakfast"`
}

// DoseActionResponse reports the stored entry and whether the call changed it.
type DoseActionResponse struct {
	Dose    *domain.DoseEvent `json:"dose"`
	Changed bool              `json:"changed"`
}

// doseRequest is a bound and parsed DoseActionRequest.
type doseRequest struct {
	medicationID string
	scheduledAt  time.Time
	raw          DoseActionRequest
}

func bindDose(c *gin.Context) (doseRequest, bool) {
	var dr doseRequest
	id, valid := pathID(c, "id")
	if !valid {
		return dr, false
	}
	if err := c.ShouldBindJSON(&dr.raw); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return dr, false
	}
	at, parsed := parseTimestamp(dr.raw.ScheduledAt)
	if !parsed {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "scheduled_at: expected an RFC 3339 timestamp")
		return dr, false
	}
	dr.medicationID, dr.scheduledAt = id, at
	return dr, true
}

// TakeDose godoc
// @ID          takeDose
// @Summary     Mark a dose taken
// @Description Records that the dose scheduled at `scheduled_at` was taken. Repeating the call keeps the first taken_at and answers changed=false.
// @Tags        Doses
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DoseActionRequest  true  "Dose"
// @Success     200  {object} handlers.DoseActionResponse
// @Failure     400  {object} handlers.ErrorResponse "Not a scheduled dose time"
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medications/{id}/doses/take [post]
func (h *Handlers) TakeDose(c *gin.Context) {
	dr, valid := bindDose(c)
	if !valid {
		return
	}
	var takenAt time.Time
	if dr.raw.TakenAt != "" {
		t, parsed := parseTimestamp(dr.raw.TakenAt)
		if !parsed {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "taken_at: expected an RFC 3339 timestamp")
			return
		}
		takenAt = t
	}
	ev, changed, err := h.svc.Doses.MarkTaken(actorCtx(c), dr.medicationID, dr.scheduledAt, takenAt)
	if err != nil {
		respondErr(c, err, ErrCodeDoseFailed)
		return
	}
	if changed {
		middleware.ObserveDoseAction(services.ActionTake)
	}
	ok(c, http.StatusOK, DoseActionResponse{Dose: ev, Changed: changed})
}

// SkipDose godoc
// @ID          skipDose
// @Summary     Mark a dose skipped
// @Description A skipped dose is resolved and no longer raises an alert. A taken dose is left unchanged.
// @Tags        Doses
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DoseActionRequest  true  "Dose"
// @Success     200  {object} handlers.DoseActionResponse
// @Failure     400  {object} handlers.ErrorResponse "Not a scheduled dose time"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id}/doses/skip [post]
func (h *Handlers) SkipDose(c *gin.Context) {
	dr, valid := bindDose(c)
	if !valid {
		return
	}
	ev, changed, err := h.svc.Doses.MarkSkipped(actorCtx(c), dr.medicationID, dr.scheduledAt)
	if err != nil {
		respondErr(c, err, ErrCodeDoseFailed)
		return
	}
	if changed {
		middleware.ObserveDoseAction(services.ActionSkip)
	}
	ok(c, http.StatusOK, DoseActionResponse{Dose: ev, Changed: changed})
}

// UndoDose godoc
// @ID          undoDose
// @Summary     Undo a dose outcome
// @Description Clears the taken and skipped flags of a logged dose; the note is kept. changed is false when the dose had no outcome.
// @Tags        Doses
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DoseActionRequest  true  "Dose"
// @Success     200  {object} handlers.DoseActionResponse
// @Failure     404  {object} handlers.ErrorResponse "Medication or dose not found"
// @Router      /medications/{id}/doses/undo [post]
func (h *Handlers) UndoDose(c *gin.Context) {
	dr, valid := bindDose(c)
	if !valid {
		return
	}
	ev, changed, err := h.svc.Doses.Undo(actorCtx(c), dr.medicationID, dr.scheduledAt)
	if err != nil {
		respondErr(c, err, ErrCodeDoseFailed)
		return
	}
	if changed {
		middleware.ObserveDoseAction(services.ActionUndo)
	}
	ok(c, http.StatusOK, DoseActionResponse{Dose: ev, Changed: changed})
}

// NoteDose godoc
// @ID          noteDose
// @Summary     Annotate a dose
// @Tags        Doses
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DoseActionRequest  true  "Dose and note"
// @Success     200  {object} handlers.DoseActionResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id}/doses/note [post]
func (h *Handlers) NoteDose(c *gin.Context) {
	dr, valid := bindDose(c)
	if !valid {
		return
	}
	ev, err := h.svc.Doses.SetNote(actorCtx(c), dr.medicationID, dr.scheduledAt, dr.raw.Note)
	if err != nil {
		respondErr(c, err, ErrCodeDoseFailed)
		return
	}
	middleware.ObserveDoseAction(services.ActionNote)
	ok(c, http.StatusOK, DoseActionResponse{Dose: ev, Changed: true})
}

// DoseStatus godoc
// @ID          doseStatus
// @Summary     Status of one dose
// @Description Returns taken, skipped, overdue or upcoming for the dose scheduled at `scheduled_at`.
// @Tags        Doses
// @Produce     json
// @Param       id            path   string  true  "Medication ID (UUID)"  format(uuid)
// @Param       scheduled_at  query  string  true  "Scheduled time (RFC 3339)"
// @Success     200  {object} services.DoseView
// @Failure     400  {object} handlers.ErrorResponse "Not a scheduled dose time"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id}/doses/status [get]
func (h *Handlers) DoseStatus(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	at, parsed := parseTimestamp(c.Query("scheduled_at"))
	if !parsed {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "scheduled_at: expected an RFC 3339 timestamp")
		return
	}
	v, err := h.svc.Doses.Status(c.Request.Context(), id, at)
	if err != nil {
		respondErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

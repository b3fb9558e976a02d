// Medication HTTP handlers.
//
// A medication belongs to a patient and carries its dosing schedule
// (start, frequency in hours, optional end). Pausing is a flag; paused
// medications keep their history but raise no alerts.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/utils"
)

// SetActiveRequest pauses or resumes a medication.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required" example:"false"`
}

// MedicationDosesResponse is the dose window of a medication plus its
// latest log entries.
type MedicationDosesResponse struct {
	Medication *domain.Medication  `json:"medication"`
	Doses      []services.DoseView `json:"doses"`
	History    []domain.DoseEvent  `json:"history"`
}

// CreateMedication godoc
// @ID          createMedication
// @Summary     Add a medication
// @Description Adds a medication with its dosing schedule to a patient. Supports the Idempotency-Key header.
// @Tags        Medications
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string                    false "Idempotency key for safe retries"
// @Param       id               path    string                    true  "Patient ID (UUID)"  format(uuid)
// @Param       body             body    services.MedicationInput  true  "Medication payload"
//
// @Success     201  {object}  domain.Medication
// @Success     200  {object}  domain.Medication      "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object}  handlers.ErrorResponse "Patient not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /patients/{id}/medications [post]
func (h *Handlers) CreateMedication(c *gin.Context) {
	patientID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if replay(c, func(id string) (any, error) { return h.svc.Medications.Get(c.Request.Context(), id) }) {
		return
	}
	var in services.MedicationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.svc.Medications.Create(actorCtx(c), patientID, in)
	if err != nil {
		respondErr(c, err, ErrCodeCreateFailed)
		return
	}
	h.remember(c, m.ID, http.StatusCreated)
	ok(c, http.StatusCreated, m)
}

// ListMedications godoc
// @ID          listMedications
// @Summary     List a patient's medications
// @Tags        Medications
// @Produce     json
// @Param       id             path    string  true   "Patient ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}  domain.Medication
// @Header      200  {string} ETag "Weak ETag over the patient's medications"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/medications [get]
func (h *Handlers) ListMedications(c *gin.Context) {
	patientID, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	meds, err := h.svc.Medications.ListForPatient(ctx, patientID)
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	if count, maxTS, err := h.svc.Medications.Stats(ctx, patientID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"medications:%s:%d:%d"`, patientID, count, ts)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	ok(c, http.StatusOK, meds)
}

// GetMedication godoc
// @ID          getMedication
// @Summary     Get a medication
// @Tags        Medications
// @Produce     json
// @Param       id   path  string  true  "Medication ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Medication
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id} [get]
func (h *Handlers) GetMedication(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	m, err := h.svc.Medications.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, m)
}

// UpdateMedication godoc
// @ID          updateMedication
// @Summary     Update a medication
// @Description Replaces the editable fields and schedule of a medication. Logged doses are kept.
// @Tags        Medications
// @Accept      json
// @Produce     json
// @Param       id    path  string                    true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  services.MedicationInput  true  "Medication payload"
// @Success     200  {object} domain.Medication
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id} [put]
func (h *Handlers) UpdateMedication(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in services.MedicationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.svc.Medications.Update(actorCtx(c), id, in)
	if err != nil {
		respondErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, m)
}

// SetMedicationActive godoc
// @ID          setMedicationActive
// @Summary     Pause or resume a medication
// @Tags        Medications
// @Accept      json
// @Produce     json
// @Param       id    path  string                     true  "Medication ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SetActiveRequest  true  "Active flag"
// @Success     200  {object} domain.Medication
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id}/active [post]
func (h *Handlers) SetMedicationActive(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "active flag required")
		return
	}
	m, err := h.svc.Medications.SetActive(actorCtx(c), id, *req.Active)
	if err != nil {
		respondErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, m)
}

// MedicationDoses godoc
// @ID          medicationDoses
// @Summary     Dose window of a medication
// @Description Returns the last `past` doses up to now and the next `next` doses with their status, plus recent log entries.
// @Tags        Doses
// @Produce     json
// @Param       id     path   string  true   "Medication ID (UUID)"  format(uuid)
// @Param       past   query  int     false  "Past doses"      minimum(0) maximum(50) default(3)
// @Param       next   query  int     false  "Upcoming doses"  minimum(0) maximum(50) default(5)
// @Param       limit  query  int     false  "History entries" minimum(1) maximum(200) default(10)
// @Success     200  {object} handlers.MedicationDosesResponse
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id}/doses [get]
func (h *Handlers) MedicationDoses(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	past := utils.IntInRange(c.Query("past"), 3, 0, 50)
	next := utils.IntInRange(c.Query("next"), 5, 0, 50)

	m, err := h.svc.Medications.Get(ctx, id)
	if err != nil {
		respondErr(c, err, ErrCodeInternal)
		return
	}
	doses, err := h.svc.Doses.Upcoming(ctx, id, past, next)
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	hist, err := h.svc.Doses.History(ctx, id, utils.AtoiDefault(c.Query("limit"), 10))
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, MedicationDosesResponse{Medication: m, Doses: doses, History: hist})
}

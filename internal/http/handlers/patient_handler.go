// Patient HTTP handlers.
//
//   - POST   /patients                 (create, idempotent)
//   - GET    /patients                 (list, paginated, ETag support)
//   - GET    /patients/{id}            (read)
//   - PUT    /patients/{id}            (update)
//   - DELETE /patients/{id}            (delete with medications and history)
//   - GET    /patients/{id}/today      (today's doses grouped by hour)
//   - GET    /patients/{id}/adherence  (7-day adherence)
//   - GET    /patients/{id}/falls      (fall history)
//   - POST   /patients/{id}/falls      (record a fall)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/healthline/internal/domain"
	"github.com/tbourn/healthline/internal/services"
	"github.com/tbourn/healthline/internal/utils"
)

// ListPatientsResponse wraps a page of patients and pagination information.
type ListPatientsResponse struct {
	Patients   []domain.Patient `json:"patients"`
	Pagination Pagination       `json:"pagination"`
}

// RecordFallRequest is the JSON payload for recording a fall. OccurredAt
// defaults to now.
type RecordFallRequest struct {
	OccurredAt string `json:"occurred_at" example:"2025-03-10T08:15:00Z"`
	Location   string `json:"location" example:"bathroom"`
	Note       string `json:"note" example:"no visible injury"`
}

// pathID returns the :name path parameter, answering 400 unless it is a UUID.
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a UUID")
		return "", false
	}
	return id, true
}

// CreatePatient godoc
// @ID          createPatient
// @Summary     Create a patient
// @Description Registers a patient. Supports the Idempotency-Key header (same key returns the same patient).
// @Tags        Patients
// @Accept      json
// @Produce     json
//
// @Param       X-Role           header  string  false "Acting role (when role switching is enabled)"  Enums(CARE_ADMIN, NURSE, FAMILY)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    services.PatientInput  true  "Patient payload"
//
// @Success     201  {object}  domain.Patient
// @Success     200  {object}  domain.Patient         "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse "Role not allowed"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /patients [post]
func (h *Handlers) CreatePatient(c *gin.Context) {
	if replay(c, func(id string) (any, error) { return h.svc.Patients.Get(c.Request.Context(), id) }) {
		return
	}
	var in services.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.svc.Patients.Create(actorCtx(c), in)
	if err != nil {
		respondErr(c, err, ErrCodeCreateFailed)
		return
	}
	h.remember(c, p.ID, http.StatusCreated)
	ok(c, http.StatusCreated, p)
}

// ListPatients godoc
// @ID          listPatients
// @Summary     List patients (paginated)
// @Description Returns a page of patients ordered by name. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Patients
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPatientsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /patients [get]
func (h *Handlers) ListPatients(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Patients.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"patients:%d:%d:%d:%d"`, page, pageSize, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.Patients.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListPatientsResponse{Patients: items, Pagination: newPagination(page, pageSize, total)})
}

// GetPatient godoc
// @ID          getPatient
// @Summary     Get a patient
// @Tags        Patients
// @Produce     json
// @Param       id   path  string  true  "Patient ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Patient
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id} [get]
func (h *Handlers) GetPatient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	p, err := h.svc.Patients.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePatient godoc
// @ID          updatePatient
// @Summary     Update a patient
// @Description Replaces the editable fields of a patient.
// @Tags        Patients
// @Accept      json
// @Produce     json
// @Param       id    path  string                 true  "Patient ID (UUID)"  format(uuid)
// @Param       body  body  services.PatientInput  true  "Patient payload"
// @Success     200  {object} domain.Patient
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /patients/{id} [put]
func (h *Handlers) UpdatePatient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in services.PatientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.svc.Patients.Update(actorCtx(c), id, in)
	if err != nil {
		respondErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePatient godoc
// @ID          deletePatient
// @Summary     Delete a patient
// @Description Deletes the patient together with medications, dose history and falls.
// @Tags        Patients
// @Param       id   path  string  true  "Patient ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Role not allowed"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /patients/{id} [delete]
func (h *Handlers) DeletePatient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Patients.Delete(actorCtx(c), id); err != nil {
		respondErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// PatientToday godoc
// @ID          patientToday
// @Summary     Today's doses
// @Description Returns the patient's doses for the current UTC day grouped by hour, with their status.
// @Tags        Patients
// @Produce     json
// @Param       id   path  string  true  "Patient ID (UUID)"  format(uuid)
// @Success     200  {object} services.DayPlan
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/today [get]
func (h *Handlers) PatientToday(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	plan, err := h.svc.Doses.Today(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, plan)
}

// PatientAdherence godoc
// @ID          patientAdherence
// @Summary     Patient adherence
// @Description Counts taken, skipped, overdue and pending doses over the trailing 7 days.
// @Tags        Patients
// @Produce     json
// @Param       id   path  string  true  "Patient ID (UUID)"  format(uuid)
// @Success     200  {object} services.Adherence
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/adherence [get]
func (h *Handlers) PatientAdherence(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	a, err := h.svc.Adherence.ForPatient(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, a)
}

// ListFalls godoc
// @ID          listFalls
// @Summary     Fall history
// @Tags        Falls
// @Produce     json
// @Param       id     path   string  true   "Patient ID (UUID)"  format(uuid)
// @Param       limit  query  int     false  "Max items"  minimum(1) maximum(200) default(50)
// @Success     200  {array}  domain.FallEvent
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/falls [get]
func (h *Handlers) ListFalls(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if _, err := h.svc.Patients.Get(c.Request.Context(), id); err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	falls, err := h.svc.Falls.List(c.Request.Context(), id, utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		respondErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, falls)
}

// RecordFall godoc
// @ID          recordFall
// @Summary     Record a fall
// @Tags        Falls
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Patient ID (UUID)"  format(uuid)
// @Param       body  body  handlers.RecordFallRequest  true  "Fall payload"
// @Success     201  {object} domain.FallEvent
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/falls [post]
func (h *Handlers) RecordFall(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req RecordFallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in := services.FallInput{Location: req.Location, Note: req.Note}
	if req.OccurredAt != "" {
		t, parsed := parseTimestamp(req.OccurredAt)
		if !parsed {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "occurred_at: expected an RFC 3339 timestamp")
			return
		}
		in.OccurredAt = &t
	}
	ev, err := h.svc.Falls.Record(actorCtx(c), id, in)
	if err != nil {
		respondErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ev)
}

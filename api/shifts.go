package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
)

// =============================================================================
// CREATE
// =============================================================================

// CreateShift creates a shift assigned to one staff member.
// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req CreateShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	s, err := h.Shifts.CreateAssignedShift(r.Context(), actorFrom(r), shift.AssignedShiftInput{
		Name:      req.Name,
		StaffID:   req.AssignedTo,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
		Role:      req.Role,
		Location:  req.Location,
		Notes:     req.Notes,
	}, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(*s))
}

// CreateOpenShift posts a shift any staff member of the organization can claim.
// POST /api/shifts/open
func (h *Handler) CreateOpenShift(w http.ResponseWriter, r *http.Request) {
	var req CreateOpenShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	s, err := h.Shifts.CreateOpenShift(r.Context(), actorFrom(r), shift.OpenShiftInput{
		Name:      req.Name,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
		Role:      req.Role,
		Location:  req.Location,
		Notes:     req.Notes,
	}, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(*s))
}

// ImportShifts creates assigned shifts from an uploaded .xlsx workbook in
// the multipart field "file". Rejected rows are listed, not fatal.
// POST /api/shifts/import
func (h *Handler) ImportShifts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDomainError(w, h.log, &generic.ValidationError{Field: "file", Message: "an .xlsx upload is required"})
		return
	}
	defer file.Close()

	rows, err := factory.ParseShiftWorkbook(file)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	result, err := h.Shifts.ImportShifts(r.Context(), actorFrom(r), rows, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	resp := ImportResultDTO{Created: len(result.Created), Shifts: toShiftDTOs(result.Created)}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunReminders runs the reminder sweep immediately.
// POST /api/shifts/reminders/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if err := generic.Authorize(actor, generic.Subject{OrganizationID: actor.OrganizationID},
		generic.ManagerOfOrganization.For("run shift reminders")); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	res, err := h.Reminders.Run(r.Context(), h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{Scanned: res.Scanned, Sent: res.Sent})
}

// =============================================================================
// QUERIES
// =============================================================================

// ListShifts lists the organization's shifts.
// Query: status (comma-separated), staffId, from, to (YYYY-MM-DD).
// GET /api/shifts
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := shift.Filter{AssignedTo: q.Get("staffId")}
	for _, s := range csvQuery(r, "status") {
		st := shift.Status(s)
		if !st.Valid() {
			writeDomainError(w, h.log, &generic.ValidationError{Field: "status", Message: "unknown status " + s})
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	var err error
	if f.From, err = parseOptionalDate("from", ptrIfSet(q.Get("from"))); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if f.To, err = parseOptionalDate("to", ptrIfSet(q.Get("to"))); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	shifts, err := h.Shifts.ListShifts(r.Context(), actorFrom(r), f)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// ListMyShifts lists the caller's assigned shifts.
// GET /api/shifts/mine
func (h *Handler) ListMyShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Shifts.ListMyShifts(r.Context(), actorFrom(r))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// ListOpenShifts lists shifts waiting to be claimed.
// GET /api/shifts/available
func (h *Handler) ListOpenShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.Shifts.ListOpenShifts(r.Context(), actorFrom(r))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

// GetShift returns one shift.
// GET /api/shifts/{id}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	s, err := h.Shifts.GetShift(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// =============================================================================
// EDITS
// =============================================================================

// UpdateShift applies a partial update.
// PUT /api/shifts/{id}
func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	var req UpdateShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	s, err := h.Shifts.UpdateShift(r.Context(), actorFrom(r), chi.URLParam(r, "id"), shift.ShiftUpdate{
		Name:       req.Name,
		AssignedTo: req.AssignedTo,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Timezone:   req.Timezone,
		Role:       req.Role,
		Location:   req.Location,
		Notes:      req.Notes,
	}, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// DeleteShift removes a shift.
// DELETE /api/shifts/{id}
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.Shifts.DeleteShift(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// ClaimShift takes an open shift.
// POST /api/shifts/{id}/claim
func (h *Handler) ClaimShift(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Shifts.ClaimOpenShift)
}

// ClockIn starts the caller's shift. Outside the clock-in window the 403
// body carries the window and, when it has not opened yet, Retry-After.
// POST /api/shifts/{id}/clock-in
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Shifts.ClockIn)
}

// ClockOut ends the caller's shift.
// POST /api/shifts/{id}/clock-out
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Shifts.ClockOut)
}

// MarkMissed records a no-show.
// POST /api/shifts/{id}/missed
func (h *Handler) MarkMissed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Shifts.MarkMissed)
}

// CompleteShift marks the shift completed, with optional notes.
// POST /api/shifts/{id}/complete
func (h *Handler) CompleteShift(w http.ResponseWriter, r *http.Request) {
	var req CompleteShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	s, err := h.Shifts.MarkCompleted(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Notes, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// ReviewShift approves completed work or sends it back for rework.
// POST /api/shifts/{id}/review
func (h *Handler) ReviewShift(w http.ResponseWriter, r *http.Request) {
	var req ReviewShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	s, err := h.Shifts.ReviewShift(r.Context(), actorFrom(r), chi.URLParam(r, "id"),
		shift.ReviewDecision(req.Decision), req.Reason, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

// CancelShift cancels a shift that has not started.
// POST /api/shifts/{id}/cancel
func (h *Handler) CancelShift(w http.ResponseWriter, r *http.Request) {
	var req CancelShiftRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	s, err := h.Shifts.CancelShift(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Reason, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

type transitionFunc func(ctx context.Context, actor generic.Actor, id string, now time.Time) (*shift.Shift, error)

// transition runs a body-less shift transition on the {id} path parameter.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	s, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "id"), h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(*s))
}

func ptrIfSet(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

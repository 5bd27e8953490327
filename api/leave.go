package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/timeoff"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitLeave files a pending leave request for the caller.
// POST /api/leave/requests
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	lr, err := h.Leave.Submit(r.Context(), actorFrom(r), timeoff.SubmitInput{
		Type:        timeoff.LeaveType(req.Type),
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
		Attachments: req.Attachments,
	}, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*lr))
}

// ListMyLeave lists the caller's requests.
// Query: status (comma-separated).
// GET /api/leave/requests/mine
func (h *Handler) ListMyLeave(w http.ResponseWriter, r *http.Request) {
	statuses, err := requestStatuses(r)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	reqs, err := h.Leave.ListMine(r.Context(), actorFrom(r), statuses)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ListTeamLeave lists requests from the manager's direct reports.
// Query: status (comma-separated).
// GET /api/leave/requests
func (h *Handler) ListTeamLeave(w http.ResponseWriter, r *http.Request) {
	statuses, err := requestStatuses(r)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	reqs, err := h.Leave.ListForManager(r.Context(), actorFrom(r), statuses)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ReviewLeave approves, rejects or modifies a pending request.
// POST /api/leave/requests/{id}/review
func (h *Handler) ReviewLeave(w http.ResponseWriter, r *http.Request) {
	var req ReviewLeaveRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	in := timeoff.ReviewInput{Action: timeoff.RequestStatus(req.Action), Comments: req.Comments}
	var err error
	if in.ModifiedStart, err = parseOptionalDate("modifiedStartDate", &req.ModifiedStart); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	if in.ModifiedEnd, err = parseOptionalDate("modifiedEndDate", &req.ModifiedEnd); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	lr, err := h.Leave.Review(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*lr))
}

// CancelLeave withdraws one of the caller's pending requests.
// POST /api/leave/requests/{id}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	lr, err := h.Leave.Cancel(r.Context(), actorFrom(r), chi.URLParam(r, "id"), h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*lr))
}

// AssignLeave records already-approved leave for a direct report.
// POST /api/leave/assign
func (h *Handler) AssignLeave(w http.ResponseWriter, r *http.Request) {
	var req AssignLeaveRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	lr, err := h.Leave.Assign(r.Context(), actorFrom(r), timeoff.AssignInput{
		StaffID:     req.StaffID,
		Type:        timeoff.LeaveType(req.Type),
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
		Attachments: req.Attachments,
	}, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*lr))
}

// =============================================================================
// BALANCES
// =============================================================================

// GetBalance returns the caller's balance for the current year.
// GET /api/leave/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	view, err := h.Leave.BalanceView(r.Context(), actorFrom(r), h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	dto := toBalanceDTO(view.Balance)
	dto.PendingAnnualDays = &view.PendingAnnualDays
	writeJSON(w, http.StatusOK, dto)
}

// ListBalances returns the current-year balance of each direct report.
// GET /api/leave/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Leave.StaffBalances(r.Context(), actorFrom(r), h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	out := make([]StaffBalanceDTO, 0, len(rows))
	for _, sb := range rows {
		out = append(out, StaffBalanceDTO{
			StaffID:         sb.StaffID,
			StaffName:       sb.StaffName,
			Balance:         toBalanceDTO(sb.Balance),
			PendingRequests: sb.PendingRequests,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SetEntitlement sets a direct report's annual entitlement for the current year.
// PUT /api/leave/balances/{staffId}
func (h *Handler) SetEntitlement(w http.ResponseWriter, r *http.Request) {
	var req SetEntitlementRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	b, err := h.Ledger.SetEntitlement(r.Context(), actorFrom(r), chi.URLParam(r, "staffId"), req.Days, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

// CarryOver moves unused days from fromYear into the following year.
// POST /api/leave/balances/{staffId}/carry-over
func (h *Handler) CarryOver(w http.ResponseWriter, r *http.Request) {
	var req CarryOverRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	b, err := h.Ledger.CarryOver(r.Context(), actorFrom(r), chi.URLParam(r, "staffId"), req.FromYear, req.MaxDays, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

// BalanceHistory lists the ledger entries behind a balance.
// Query: year (defaults to the current year).
// GET /api/leave/balances/{staffId}/history
func (h *Handler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	year, err := yearQuery(r, h.clock.Now().Year())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	txs, err := h.Ledger.History(r.Context(), actorFrom(r), chi.URLParam(r, "staffId"), year)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// REPORTS
// =============================================================================

// LeaveReport totals approved days per direct report.
// GET /api/leave/report?year=
func (h *Handler) LeaveReport(w http.ResponseWriter, r *http.Request) {
	year, err := yearQuery(r, h.clock.Now().Year())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	report, err := h.Leave.Report(r.Context(), actorFrom(r), year)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	dto := ReportDTO{Year: report.Year, Rows: make([]ReportRowDTO, 0, len(report.Rows))}
	for _, row := range report.Rows {
		dto.Rows = append(dto.Rows, ReportRowDTO(row))
	}
	writeJSON(w, http.StatusOK, dto)
}

// LeaveStats summarizes the current year's requests.
// GET /api/leave/stats
func (h *Handler) LeaveStats(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	stats, err := h.Leave.Stats(r.Context(), actor, h.clock.Now())
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	dto := StatsDTO{
		TotalRequests:      stats.TotalRequests,
		PendingRequests:    stats.PendingRequests,
		ApprovedRequests:   stats.ApprovedRequests,
		RejectedRequests:   stats.RejectedRequests,
		TotalDaysRequested: stats.TotalDaysRequested,
		ApprovedDays:       stats.ApprovedDays,
	}
	if actor.IsManager() {
		dto.StaffCount = &stats.StaffCount
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRange(startDate, endDate string) (generic.TimePoint, generic.TimePoint, error) {
	start, err := parseDate("startDate", startDate)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, err
	}
	end, err := parseDate("endDate", endDate)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, err
	}
	return start, end, nil
}

func requestStatuses(r *http.Request) ([]timeoff.RequestStatus, error) {
	var out []timeoff.RequestStatus
	for _, s := range csvQuery(r, "status") {
		switch st := timeoff.RequestStatus(s); st {
		case timeoff.StatusPending, timeoff.StatusApproved, timeoff.StatusRejected, timeoff.StatusModified:
			out = append(out, st)
		default:
			return nil, &generic.ValidationError{Field: "status", Message: "unknown status " + s}
		}
	}
	return out, nil
}

package api_test

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/api"
)

func (ts *testServer) submitLeave(body api.SubmitLeaveRequest) api.LeaveRequestDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/leave/requests", alice, body)
	requireStatus(ts.t, rec, http.StatusCreated)
	return decode[api.LeaveRequestDTO](ts.t, rec)
}

func TestLeaveFlow_OverHTTP(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: Alice asks for three days of annual leave
	lr := ts.submitLeave(api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-10", EndDate: "2025-06-12", Reason: "family"})
	assert.Equal(t, "pending", lr.Status)
	assert.Equal(t, 3, lr.DaysRequested)

	rec := ts.do(http.MethodGet, "/api/leave/balance", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	b := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "21", b.Remaining.String(), "nothing is deducted before approval")
	require.NotNil(t, b.PendingAnnualDays)
	assert.Equal(t, 3, *b.PendingAnnualDays)

	// The manager sees it in the team queue and was notified.
	rec = ts.do(http.MethodGet, "/api/leave/requests?status=pending", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]api.LeaveRequestDTO](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/notifications", manager, nil)
	inbox := decode[[]api.NotificationDTO](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "leave_request", inbox[0].Type)

	// WHEN: the manager approves
	rec = ts.do(http.MethodPost, "/api/leave/requests/"+lr.ID+"/review", manager, api.ReviewLeaveRequest{Action: "approved", Comments: "enjoy"})
	requireStatus(t, rec, http.StatusOK)
	reviewed := decode[api.LeaveRequestDTO](t, rec)
	assert.Equal(t, "approved", reviewed.Status)
	require.NotNil(t, reviewed.Review)
	assert.Equal(t, "enjoy", reviewed.Review.Comment)

	// THEN: the days come off the balance and show in the ledger
	rec = ts.do(http.MethodGet, "/api/leave/balance", alice, nil)
	assert.Equal(t, "18", decode[api.BalanceDTO](t, rec).Remaining.String())

	rec = ts.do(http.MethodGet, "/api/leave/balances/staff-1/history?year=2025", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	history := decode[[]api.TransactionDTO](t, rec)
	var consumed *api.TransactionDTO
	for i := range history {
		if history[i].ReferenceID == lr.ID {
			consumed = &history[i]
		}
	}
	require.NotNil(t, consumed, "approval records a consumption")
	assert.Equal(t, "consumption", consumed.Type)
	assert.True(t, consumed.Delta.Equal(decimal.NewFromInt(-3)), consumed.Delta.String())

	// An overlapping request is refused.
	rec = ts.do(http.MethodPost, "/api/leave/requests", alice, api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-12", EndDate: "2025-06-13"})
	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, api.CodeConflict, decode[errorBody](t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/leave/report?year=2025", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	report := decode[api.ReportDTO](t, rec)
	assert.Equal(t, 2025, report.Year)
	var aliceRow api.ReportRowDTO
	for _, row := range report.Rows {
		if row.StaffID == "staff-1" {
			aliceRow = row
		}
	}
	assert.Equal(t, api.ReportRowDTO{StaffID: "staff-1", StaffName: "Alice", Annual: 3, Total: 3}, aliceRow)

	rec = ts.do(http.MethodGet, "/api/leave/stats", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	stats := decode[api.StatsDTO](t, rec)
	assert.Equal(t, 1, stats.ApprovedRequests)
	assert.Equal(t, 3, stats.ApprovedDays)
	require.NotNil(t, stats.StaffCount)
	assert.Equal(t, 2, *stats.StaffCount)

	rec = ts.do(http.MethodGet, "/api/leave/stats", alice, nil)
	assert.Nil(t, decode[api.StatsDTO](t, rec).StaffCount)
}

func TestSubmitLeave_Rejections(t *testing.T) {
	ts := newTestServer(t)

	t.Run("insufficient balance", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/leave/requests", alice, api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-10", EndDate: "2025-07-09"})

		requireStatus(t, rec, http.StatusBadRequest)
		eb := decode[errorBody](t, rec)
		assert.Equal(t, api.CodeInsufficientBalance, eb.Code)
		assert.Equal(t, "9", eb.Details["shortfall"])
	})

	t.Run("sick leave needs a report", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/leave/requests", alice, api.SubmitLeaveRequest{Type: "sick", StartDate: "2025-06-10", EndDate: "2025-06-10"})

		requireStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "attachments", decode[errorBody](t, rec).Details["field"])
	})

	t.Run("unknown leave type", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/leave/requests", alice, api.SubmitLeaveRequest{Type: "sabbatical", StartDate: "2025-06-10", EndDate: "2025-06-10"})

		requireStatus(t, rec, http.StatusBadRequest)
		assert.Equal(t, "type", decode[errorBody](t, rec).Details["field"])
	})

	t.Run("managers do not submit", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/leave/requests", manager, api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-10", EndDate: "2025-06-10"})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestReviewLeave_Modified(t *testing.T) {
	ts := newTestServer(t)
	lr := ts.submitLeave(api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-10", EndDate: "2025-06-13"})

	rec := ts.do(http.MethodPost, "/api/leave/requests/"+lr.ID+"/review", manager, api.ReviewLeaveRequest{
		Action: "modified", Comments: "two days only", ModifiedEnd: "2025-06-11",
	})

	requireStatus(t, rec, http.StatusOK)
	got := decode[api.LeaveRequestDTO](t, rec)
	assert.Equal(t, "modified", got.Status)
	assert.Equal(t, "2025-06-10", got.ModifiedStartDate)
	assert.Equal(t, "2025-06-11", got.ModifiedEndDate)

	rec = ts.do(http.MethodGet, "/api/leave/requests/mine?status=modified", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]api.LeaveRequestDTO](t, rec), 1)
}

func TestCancelAndAssignLeave(t *testing.T) {
	ts := newTestServer(t)
	lr := ts.submitLeave(api.SubmitLeaveRequest{Type: "annual", StartDate: "2025-06-10", EndDate: "2025-06-10"})

	rec := ts.do(http.MethodPost, "/api/leave/requests/"+lr.ID+"/cancel", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/leave/requests/"+lr.ID+"/cancel", alice, nil)
	requireStatus(t, rec, http.StatusOK)

	rec = ts.do(http.MethodPost, "/api/leave/assign", manager, api.AssignLeaveRequest{
		StaffID: "staff-2", Type: "annual", StartDate: "2025-06-20", EndDate: "2025-06-21",
	})
	requireStatus(t, rec, http.StatusCreated)
	assigned := decode[api.LeaveRequestDTO](t, rec)
	assert.Equal(t, "approved", assigned.Status)

	rec = ts.do(http.MethodGet, "/api/leave/balances", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	balances := decode[[]api.StaffBalanceDTO](t, rec)
	require.Len(t, balances, 2)
	for _, sb := range balances {
		if sb.StaffID == "staff-2" {
			assert.Equal(t, "19", sb.Balance.Remaining.String())
		}
	}
}

func TestEntitlementAndCarryOver(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/api/leave/balances/staff-1", alice, api.SetEntitlementRequest{Days: decimal.NewFromInt(30)})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPut, "/api/leave/balances/staff-1", manager, api.SetEntitlementRequest{Days: decimal.NewFromInt(25)})
	requireStatus(t, rec, http.StatusOK)
	b := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "25", b.TotalAnnualLeave.String())
	assert.Equal(t, 2025, b.Year)

	rec = ts.do(http.MethodPost, "/api/leave/balances/staff-1/carry-over", manager, api.CarryOverRequest{FromYear: 2025, MaxDays: decimal.NewFromInt(5)})
	requireStatus(t, rec, http.StatusOK)
	next := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, 2026, next.Year)
	assert.Equal(t, "5", next.CarryOver.String())

	rec = ts.do(http.MethodGet, "/api/leave/balances/staff-1/history?year=20x5", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package api_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/api"
	"github.com/xuri/excelize/v2"
)

func (ts *testServer) createShift(assignee string) api.ShiftDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/shifts", manager, api.CreateShiftRequest{
		Name: "Morning", AssignedTo: assignee, Date: "2025-06-01", StartTime: "09:00", EndTime: "17:00",
	})
	requireStatus(ts.t, rec, http.StatusCreated)
	return decode[api.ShiftDTO](ts.t, rec)
}

func TestShiftLifecycle_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createShift("staff-1")
	assert.Equal(t, "assigned", s.Status)
	path := "/api/shifts/" + s.ID

	// GIVEN: it is 07:00, clock-in opens at 08:00
	// WHEN: Alice clocks in
	rec := ts.do(http.MethodPost, path+"/clock-in", alice, nil)

	// THEN: 403 with the window and a Retry-After
	requireStatus(t, rec, http.StatusForbidden)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	eb := decode[errorBody](t, rec)
	assert.Equal(t, "2025-06-01T08:00:00Z", eb.Details["opensAt"])
	assert.Equal(t, "2025-06-01T11:00:00Z", eb.Details["closesAt"])

	// WHEN: she retries inside the window
	ts.clock.Set(morning.Add(90 * time.Minute))
	rec = ts.do(http.MethodPost, path+"/clock-in", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "in-progress", decode[api.ShiftDTO](t, rec).Status)

	// Clocking out five minutes later is too early.
	ts.clock.Advance(5 * time.Minute)
	rec = ts.do(http.MethodPost, path+"/clock-out", alice, nil)
	requireStatus(t, rec, http.StatusForbidden)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.Contains(t, decode[errorBody](t, rec).Error, "10 minutes remaining")

	// Eight hours after clocking in.
	ts.clock.Set(morning.Add(90*time.Minute + 8*time.Hour))
	rec = ts.do(http.MethodPost, path+"/clock-out", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	done := decode[api.ShiftDTO](t, rec)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "pending", done.ApprovalStatus)
	assert.Equal(t, "8", done.WorkedHours.String())

	// THEN: the manager approves it
	rec = ts.do(http.MethodPost, path+"/review", manager, api.ReviewShiftRequest{Decision: "approve"})
	requireStatus(t, rec, http.StatusOK)
	approved := decode[api.ShiftDTO](t, rec)
	assert.Equal(t, "approved", approved.ApprovalStatus)
	require.NotNil(t, approved.Review)
	assert.Equal(t, "mgr-1", approved.Review.ReviewerID)
}

func TestOpenShift_ClaimOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/shifts/open", manager, api.CreateOpenShiftRequest{
		Date: "2025-06-01", StartTime: "09:00", EndTime: "17:00",
	})
	requireStatus(t, rec, http.StatusCreated)
	open := decode[api.ShiftDTO](t, rec)
	assert.True(t, open.IsOpen)

	rec = ts.do(http.MethodGet, "/api/shifts/available", bob, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]api.ShiftDTO](t, rec), 1)

	rec = ts.do(http.MethodPost, "/api/shifts/"+open.ID+"/claim", bob, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "staff-2", decode[api.ShiftDTO](t, rec).AssignedTo)

	// The second claim loses.
	rec = ts.do(http.MethodPost, "/api/shifts/"+open.ID+"/claim", alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/shifts/available", alice, nil)
	assert.Empty(t, decode[[]api.ShiftDTO](t, rec))
}

func TestUpdateCancelDelete_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createShift("staff-1")
	path := "/api/shifts/" + s.ID

	bobID := "staff-2"
	rec := ts.do(http.MethodPut, path, manager, api.UpdateShiftRequest{AssignedTo: &bobID})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "staff-2", decode[api.ShiftDTO](t, rec).AssignedTo)

	rec = ts.do(http.MethodPost, path+"/cancel", manager, api.CancelShiftRequest{Reason: "closed for inventory"})
	requireStatus(t, rec, http.StatusOK)
	cancelled := decode[api.ShiftDTO](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Contains(t, cancelled.Notes, "closed for inventory")

	rec = ts.do(http.MethodDelete, path, manager, nil)
	requireStatus(t, rec, http.StatusNoContent)

	rec = ts.do(http.MethodGet, path, manager, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListShifts_Filters(t *testing.T) {
	ts := newTestServer(t)
	ts.createShift("staff-1")
	ts.createShift("staff-2")

	rec := ts.do(http.MethodGet, "/api/shifts?staffId=staff-2&status=assigned&from=2025-06-01&to=2025-06-30", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	shifts := decode[[]api.ShiftDTO](t, rec)
	require.Len(t, shifts, 1)
	assert.Equal(t, "staff-2", shifts[0].AssignedTo)

	rec = ts.do(http.MethodGet, "/api/shifts?status=sleeping", manager, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/shifts", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/shifts/mine", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decode[[]api.ShiftDTO](t, rec), 1)
}

// =============================================================================
// IMPORT
// =============================================================================

func workbookUpload(t *testing.T, rows [][]any) (*bytes.Buffer, string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		require.NoError(t, f.SetSheetRow(sheet, "A"+strconv.Itoa(i+1), &row))
	}
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "schedule.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestImportShifts_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	body, contentType := workbookUpload(t, [][]any{
		{"Name", "Staff Email", "Date", "Start Time", "End Time", "Role", "Location"},
		{"Opening", "alice@acme.test", "2025-06-02", "08:00", "16:00", "cashier", "Front"},
		{"Closing", "ghost@acme.test", "2025-06-02", "16:00", "23:00", "", ""},
		{"", "bob@acme.test", "2025-06-03", "09:00", "17:00", "", ""},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/shifts/import", body)
	req.Header.Set("Content-Type", contentType)
	setActor(req, manager)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	requireStatus(t, rec, http.StatusOK)
	res := decode[api.ImportResultDTO](t, rec)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 3")
	assert.Equal(t, "Front", res.Shifts[0].Location)
	assert.Equal(t, "Scheduled Shift", res.Shifts[1].Name)
}

func TestImportShifts_RequiresFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/shifts/import", manager, nil)

	requireStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "file", decode[errorBody](t, rec).Details["field"])
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifications_Inbox(t *testing.T) {
	ts := newTestServer(t)
	s := ts.createShift("staff-1")

	rec := ts.do(http.MethodGet, "/api/notifications?unread=true", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	inbox := decode[[]api.NotificationDTO](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, "shift_assigned", inbox[0].Type)
	assert.Equal(t, s.ID, inbox[0].RelatedID)
	assert.False(t, inbox[0].Read)

	// Bob cannot read Alice's notification.
	rec = ts.do(http.MethodPost, "/api/notifications/"+inbox[0].ID+"/read", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/notifications/"+inbox[0].ID+"/read", alice, nil)
	requireStatus(t, rec, http.StatusNoContent)

	rec = ts.do(http.MethodGet, "/api/notifications?unread=true", alice, nil)
	assert.Empty(t, decode[[]api.NotificationDTO](t, rec))

	ts.createShift("staff-1")
	rec = ts.do(http.MethodPost, "/api/notifications/read-all", alice, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])

	rec = ts.do(http.MethodGet, "/api/notifications", alice, nil)
	assert.Len(t, decode[[]api.NotificationDTO](t, rec), 2)
}

func TestRunReminders_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.createShift("staff-1")
	ts.clock.Set(morning.Add(90 * time.Minute))

	rec := ts.do(http.MethodPost, "/api/shifts/reminders/run", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/shifts/reminders/run", manager, nil)
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, api.SweepResultDTO{Scanned: 1, Sent: 1}, decode[api.SweepResultDTO](t, rec))

	rec = ts.do(http.MethodPost, "/api/shifts/reminders/run", manager, nil)
	assert.Equal(t, 0, decode[api.SweepResultDTO](t, rec).Sent)
}

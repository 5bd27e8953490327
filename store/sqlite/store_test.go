package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"github.com/warp/workforce-engine/shift"
	"github.com/warp/workforce-engine/store/sqlite"
	"github.com/warp/workforce-engine/timeoff"
)

var now = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveOrganization(ctx, generic.Organization{ID: "org-1", Name: "Acme", Timezone: "UTC"}))
	require.NoError(t, s.SaveMember(ctx, generic.Member{ID: "mgr-1", Name: "Mary", Email: "mary@acme.test", Role: generic.RoleManager, OrganizationID: "org-1"}))
	require.NoError(t, s.SaveMember(ctx, generic.Member{ID: "staff-1", Name: "Alice", Email: "alice@acme.test", Role: generic.RoleStaff, OrganizationID: "org-1", ManagerID: "mgr-1"}))
	return s
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestDirectory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	m, err := s.FindMemberByEmail(ctx, "org-1", "ALICE@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", m.ID)
	assert.Equal(t, "mgr-1", m.ManagerID)

	_, err = s.FindMemberByEmail(ctx, "org-2", "alice@acme.test")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	team, err := s.ListMembersByManager(ctx, "mgr-1")
	require.NoError(t, err)
	require.Len(t, team, 1)

	org, err := s.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", org.Timezone)

	_, err = s.GetMember(ctx, "ghost")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestSaveMember_Rules(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.SaveMember(ctx, generic.Member{ID: "x", Name: "X", Email: "x@acme.test", Role: "owner", OrganizationID: "org-1"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	err = s.SaveMember(ctx, generic.Member{ID: "dup", Name: "Dup", Email: "Alice@Acme.test", Role: generic.RoleStaff, OrganizationID: "org-1"})
	assert.ErrorIs(t, err, generic.ErrConflict, "email is unique per organization")

	// Saving an existing id updates it.
	err = s.SaveMember(ctx, generic.Member{ID: "staff-1", Name: "Alice Smith", Email: "alice@acme.test", Role: generic.RoleStaff, OrganizationID: "org-1", ManagerID: "mgr-1"})
	require.NoError(t, err)
	m, err := s.GetMember(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", m.Name)
}

// =============================================================================
// SHIFTS
// =============================================================================

func newShift(id string) *shift.Shift {
	return &shift.Shift{
		ID: id, OrganizationID: "org-1", CreatedBy: "mgr-1", Name: "Morning", AssignedTo: "staff-1",
		Date: generic.NewTimePoint(2025, time.June, 1), StartTime: "09:00", EndTime: "17:00",
		Status: shift.StatusAssigned, ApprovalStatus: shift.ApprovalPending,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestShift_RoundTripAndConditionalUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sh := newShift("shift-1")
	require.NoError(t, s.InsertShift(ctx, sh))

	got, err := s.GetShift(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Date.Equal(sh.Date))
	assert.Nil(t, got.ClockInTime)
	assert.True(t, got.CreatedAt.Equal(now))

	in := now.Add(time.Hour)
	got.ClockInTime = &in
	got.Status = shift.StatusInProgress
	require.NoError(t, s.UpdateShift(ctx, got))
	assert.Equal(t, 2, got.Version)

	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, s.UpdateShift(ctx, &stale), generic.ErrConcurrentModification)
	assert.ErrorIs(t, s.DeleteShift(ctx, "shift-1", 1), generic.ErrConcurrentModification)

	reloaded, err := s.GetShift(ctx, "shift-1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.ClockInTime)
	assert.True(t, reloaded.ClockInTime.Equal(in))

	require.NoError(t, s.DeleteShift(ctx, "shift-1", 2))
	_, err = s.GetShift(ctx, "shift-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestShift_OpenFlagMustMatchStatus(t *testing.T) {
	s := newStore(t)
	sh := newShift("shift-1")
	sh.IsOpen = true // status is assigned
	assert.Error(t, s.InsertShift(context.Background(), sh))
}

func TestMarkReminderSent_ClaimsOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertShift(ctx, newShift("shift-1")))

	first, err := s.MarkReminderSent(ctx, "shift-1")
	require.NoError(t, err)
	second, err := s.MarkReminderSent(ctx, "shift-1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	pending, err := s.ListShifts(ctx, shift.Filter{ReminderPending: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListShifts_Filters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i, day := range []int{3, 1, 2} {
		sh := newShift(string(rune('a' + i)))
		sh.Date = generic.NewTimePoint(2025, time.June, day)
		require.NoError(t, s.InsertShift(ctx, sh))
	}

	all, err := s.ListShifts(ctx, shift.Filter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].ID, "ordered by date")

	from := generic.NewTimePoint(2025, time.June, 2)
	ranged, err := s.ListShifts(ctx, shift.Filter{From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	none, err := s.ListShifts(ctx, shift.Filter{Statuses: []shift.Status{shift.StatusOpen}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestBalance_CreateIfAbsentAndUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := &timeoff.Balance{
		StaffID: "staff-1", Year: 2025,
		TotalAnnualLeave: generic.Days(21), UsedAnnualLeave: generic.Days(0), CarryOver: generic.Days(0),
		CreatedAt: now, UpdatedAt: now,
	}

	created, err := s.CreateBalanceIfAbsent(ctx, b)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.CreateBalanceIfAbsent(ctx, &timeoff.Balance{StaffID: "staff-1", Year: 2025,
		TotalAnnualLeave: generic.Days(99), UsedAnnualLeave: generic.Days(0), CarryOver: generic.Days(0)})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetBalance(ctx, "staff-1", 2025)
	require.NoError(t, err)
	assert.True(t, got.TotalAnnualLeave.Equal(generic.Days(21)))

	got.UsedAnnualLeave = generic.Days(5)
	require.NoError(t, s.UpdateBalance(ctx, got))
	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, s.UpdateBalance(ctx, &stale), generic.ErrConcurrentModification)

	_, err = s.GetBalance(ctx, "staff-1", 2026)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func newRequest(id string, start, end int) *timeoff.Request {
	return &timeoff.Request{
		ID: id, StaffID: "staff-1", OrganizationID: "org-1", Type: timeoff.LeaveAnnual,
		StartDate:     generic.NewTimePoint(2025, time.April, start),
		EndDate:       generic.NewTimePoint(2025, time.April, end),
		DaysRequested: end - start + 1,
		Attachments:   []string{"note.pdf"},
		Status:        timeoff.StatusPending,
		SubmittedAt:   now,
	}
}

func TestRequest_RoundTripAndOverlap(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertRequest(ctx, newRequest("r1", 7, 11)))

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"note.pdf"}, got.Attachments)
	assert.Nil(t, got.ModifiedDates)
	assert.True(t, got.Review.At.IsZero())

	touching := generic.Period{Start: generic.NewTimePoint(2025, time.April, 11), End: generic.NewTimePoint(2025, time.April, 12)}
	hits, err := s.FindOverlapping(ctx, "staff-1", touching, []timeoff.RequestStatus{timeoff.StatusPending})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	after := generic.Period{Start: generic.NewTimePoint(2025, time.April, 12), End: generic.NewTimePoint(2025, time.April, 14)}
	hits, err = s.FindOverlapping(ctx, "staff-1", after, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	got.Status = timeoff.StatusModified
	got.ModifiedDates = &generic.Period{Start: got.StartDate, End: generic.NewTimePoint(2025, time.April, 8)}
	got.Review = generic.Decision{ReviewerID: "mgr-1", At: now, Comment: "shorter"}
	require.NoError(t, s.UpdateRequest(ctx, got))

	reloaded, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.ModifiedDates)
	assert.Equal(t, "2025-04-08", reloaded.ModifiedDates.End.String())
	assert.True(t, reloaded.Review.At.Equal(now))

	byYear, err := s.ListRequests(ctx, timeoff.RequestFilter{StaffIDs: []string{"staff-1"}, Year: 2025})
	require.NoError(t, err)
	assert.Len(t, byYear, 1)
	byYear, err = s.ListRequests(ctx, timeoff.RequestFilter{Year: 2024})
	require.NoError(t, err)
	assert.Empty(t, byYear)
}

// =============================================================================
// TRANSACTIONS / LEDGER
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(st timeoff.Store) error {
		if err := st.InsertRequest(ctx, newRequest("r1", 7, 11)); err != nil {
			return err
		}
		if err := st.Append(ctx, generic.Transaction{
			ID: "tx-1", EntityID: "staff-1", Year: 2025, Delta: generic.Days(-5),
			Type: generic.TxConsumption, IdempotencyKey: "consume:r1", CreatedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetRequest(ctx, "r1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	exists, err := s.Exists(ctx, "consume:r1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_IdempotentAppendAndOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	entries := []generic.Transaction{
		{ID: "tx-1", EntityID: "staff-1", Year: 2025, Delta: generic.Days(21), Type: generic.TxGrant, IdempotencyKey: "grant:staff-1:2025", CreatedAt: now},
		{ID: "tx-2", EntityID: "staff-1", Year: 2025, Delta: generic.Days(-5), Type: generic.TxConsumption, IdempotencyKey: "consume:r1", CreatedAt: now},
	}
	for _, tx := range entries {
		require.NoError(t, s.Append(ctx, tx))
	}

	dup := entries[1]
	dup.ID = "tx-3"
	assert.ErrorIs(t, s.Append(ctx, dup), generic.ErrDuplicateIdempotencyKey)

	loaded, err := s.Load(ctx, "staff-1", 2025)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, generic.TransactionID("tx-1"), loaded[0].ID)

	sum, err := generic.NewLedger(s).Balance(ctx, "staff-1", 2025, generic.UnitDays)
	require.NoError(t, err)
	assert.True(t, sum.Equal(generic.Days(16)))
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifications(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	inbox := notify.NewInApp(s)

	require.NoError(t, inbox.Notify(ctx, notify.Notification{RecipientID: "staff-1", Type: notify.ShiftAssigned, Title: "first", CreatedAt: now}))
	require.NoError(t, inbox.Notify(ctx, notify.Notification{RecipientID: "staff-1", Type: notify.ShiftReminder, Title: "second", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, inbox.Notify(ctx, notify.Notification{RecipientID: "mgr-1", Type: notify.LeaveRequested, Title: "other", CreatedAt: now}))

	list, err := inbox.List(ctx, "staff-1", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title, "newest first")

	assert.ErrorIs(t, inbox.MarkRead(ctx, list[0].ID, "mgr-1"), generic.ErrNotFound, "someone else's notification")
	require.NoError(t, inbox.MarkRead(ctx, list[0].ID, "staff-1"))

	unread, err := inbox.List(ctx, "staff-1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "first", unread[0].Title)

	n, err := inbox.MarkAllRead(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx))
	_, err := s.GetMember(ctx, "staff-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

package timeoff

import (
	"context"
	"sort"
	"time"

	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// READ MODELS
// =============================================================================

// BalanceView is a balance plus the annual days still waiting for review.
type BalanceView struct {
	Balance
	PendingAnnualDays int
}

// StaffBalance is one row of a manager's team overview.
type StaffBalance struct {
	StaffID         string
	StaffName       string
	Balance         Balance
	PendingRequests int
}

// ReportRow totals approved days for one staff member.
type ReportRow struct {
	StaffID   string
	StaffName string
	Annual    int
	Sick      int
	Total     int
}

type Report struct {
	Year int
	Rows []ReportRow
}

type Stats struct {
	TotalRequests      int
	PendingRequests    int
	ApprovedRequests   int
	RejectedRequests   int
	TotalDaysRequested int
	ApprovedDays       int
	StaffCount         int // set for managers only
}

// =============================================================================
// QUERIES
// =============================================================================

// ListMine returns the caller's requests, newest first.
func (w *Workflow) ListMine(ctx context.Context, staff generic.Actor, statuses []RequestStatus) ([]Request, error) {
	reqs, err := w.store.ListRequests(ctx, RequestFilter{StaffIDs: []string{staff.ID}, Statuses: statuses})
	if err != nil {
		return nil, err
	}
	newestFirst(reqs)
	return reqs, nil
}

// ListForManager returns the requests of the manager's direct reports,
// newest first.
func (w *Workflow) ListForManager(ctx context.Context, manager generic.Actor, statuses []RequestStatus) ([]Request, error) {
	team, err := w.team(ctx, manager)
	if err != nil {
		return nil, err
	}
	if len(team) == 0 {
		return nil, nil
	}
	reqs, err := w.store.ListRequests(ctx, RequestFilter{StaffIDs: memberIDs(team), Statuses: statuses})
	if err != nil {
		return nil, err
	}
	newestFirst(reqs)
	return reqs, nil
}

// BalanceView returns the caller's balance for the current year,
// initializing it on first access.
func (w *Workflow) BalanceView(ctx context.Context, staff generic.Actor, now time.Time) (*BalanceView, error) {
	if staff.Role != generic.RoleStaff {
		return nil, &generic.ForbiddenError{Reason: "only staff have a leave balance"}
	}
	year := now.Year()
	b, err := w.ledger.GetOrInitBalance(ctx, staff.ID, year, now)
	if err != nil {
		return nil, err
	}
	pending, err := w.store.ListRequests(ctx, RequestFilter{
		StaffIDs: []string{staff.ID},
		Statuses: []RequestStatus{StatusPending},
		Type:     LeaveAnnual,
		Year:     year,
	})
	if err != nil {
		return nil, err
	}
	view := &BalanceView{Balance: *b}
	for _, r := range pending {
		view.PendingAnnualDays += r.DaysRequested
	}
	return view, nil
}

// StaffBalances returns the current-year balance of every direct report.
func (w *Workflow) StaffBalances(ctx context.Context, manager generic.Actor, now time.Time) ([]StaffBalance, error) {
	team, err := w.team(ctx, manager)
	if err != nil {
		return nil, err
	}
	out := make([]StaffBalance, 0, len(team))
	for _, m := range team {
		b, err := w.ledger.GetOrInitBalance(ctx, m.ID, now.Year(), now)
		if err != nil {
			return nil, err
		}
		pending, err := w.store.ListRequests(ctx, RequestFilter{StaffIDs: []string{m.ID}, Statuses: []RequestStatus{StatusPending}})
		if err != nil {
			return nil, err
		}
		out = append(out, StaffBalance{StaffID: m.ID, StaffName: m.Name, Balance: *b, PendingRequests: len(pending)})
	}
	return out, nil
}

// Report totals the approved leave of the manager's direct reports whose
// start date falls in year. Staff without approved leave are omitted.
func (w *Workflow) Report(ctx context.Context, manager generic.Actor, year int) (*Report, error) {
	team, err := w.team(ctx, manager)
	if err != nil {
		return nil, err
	}
	report := &Report{Year: year}
	if len(team) == 0 {
		return report, nil
	}
	reqs, err := w.store.ListRequests(ctx, RequestFilter{
		StaffIDs: memberIDs(team),
		Statuses: []RequestStatus{StatusApproved},
		Year:     year,
	})
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(team))
	for _, m := range team {
		names[m.ID] = m.Name
	}
	rows := map[string]*ReportRow{}
	for _, r := range reqs {
		row, ok := rows[r.StaffID]
		if !ok {
			row = &ReportRow{StaffID: r.StaffID, StaffName: names[r.StaffID]}
			rows[r.StaffID] = row
		}
		switch r.Type {
		case LeaveAnnual:
			row.Annual += r.DaysRequested
		case LeaveSick:
			row.Sick += r.DaysRequested
		}
		row.Total += r.DaysRequested
	}
	for _, row := range rows {
		report.Rows = append(report.Rows, *row)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].StaffName != report.Rows[j].StaffName {
			return report.Rows[i].StaffName < report.Rows[j].StaffName
		}
		return report.Rows[i].StaffID < report.Rows[j].StaffID
	})
	return report, nil
}

// Stats summarizes the current year's requests: the caller's own for
// staff, the whole team's for managers.
func (w *Workflow) Stats(ctx context.Context, actor generic.Actor, now time.Time) (*Stats, error) {
	stats := &Stats{}
	staffIDs := []string{actor.ID}
	if actor.IsManager() {
		team, err := w.team(ctx, actor)
		if err != nil {
			return nil, err
		}
		stats.StaffCount = len(team)
		if len(team) == 0 {
			return stats, nil
		}
		staffIDs = memberIDs(team)
	}

	reqs, err := w.store.ListRequests(ctx, RequestFilter{StaffIDs: staffIDs, Year: now.Year()})
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		stats.TotalRequests++
		stats.TotalDaysRequested += r.DaysRequested
		switch r.Status {
		case StatusPending:
			stats.PendingRequests++
		case StatusApproved:
			stats.ApprovedRequests++
			stats.ApprovedDays += r.DaysRequested
		case StatusRejected:
			stats.RejectedRequests++
		}
	}
	return stats, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (w *Workflow) team(ctx context.Context, manager generic.Actor) ([]generic.Member, error) {
	if !manager.IsManager() {
		return nil, &generic.ForbiddenError{Reason: "only managers can view team leave"}
	}
	return w.directory.ListMembersByManager(ctx, manager.ID)
}

func memberIDs(ms []generic.Member) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

func newestFirst(reqs []Request) {
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].SubmittedAt.After(reqs[j].SubmittedAt) })
}

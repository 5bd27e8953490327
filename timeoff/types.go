// Package timeoff implements annual and sick leave: yearly balances, the
// ledger that records every balance change, and the request workflow.
package timeoff

import (
	"context"
	"time"

	"github.com/warp/workforce-engine/generic"
)

// DefaultAnnualLeaveDays is the entitlement a balance is initialized with.
const DefaultAnnualLeaveDays = 21

// =============================================================================
// LEAVE TYPES / STATUS
// =============================================================================

type LeaveType string

const (
	LeaveAnnual LeaveType = "annual"
	LeaveSick   LeaveType = "sick"
)

func (t LeaveType) Valid() bool { return t == LeaveAnnual || t == LeaveSick }

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusModified RequestStatus = "modified"
)

// ActiveStatuses are the statuses whose date ranges may not overlap.
var ActiveStatuses = []RequestStatus{StatusPending, StatusApproved}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is one staff member's annual leave for one calendar year.
type Balance struct {
	StaffID          string
	Year             int
	TotalAnnualLeave generic.Amount
	UsedAnnualLeave  generic.Amount
	CarryOver        generic.Amount
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Remaining is total + carryOver - used.
func (b Balance) Remaining() generic.Amount {
	return b.TotalAnnualLeave.Add(b.CarryOver).Sub(b.UsedAnnualLeave)
}

// =============================================================================
// REQUEST
// =============================================================================

type Request struct {
	ID             string
	StaffID        string
	OrganizationID string
	Type           LeaveType
	StartDate      generic.TimePoint
	EndDate        generic.TimePoint
	DaysRequested  int
	Reason         string
	Attachments    []string
	Status         RequestStatus

	// Review is the manager's decision; Review.Comment is the manager's comment.
	Review        generic.Decision
	ModifiedDates *generic.Period

	SubmittedAt time.Time
	Version     int
}

// Period is the originally requested range.
func (r Request) Period() generic.Period {
	return generic.Period{Start: r.StartDate, End: r.EndDate}
}

// Effective is the range the request covers: the modified dates if set,
// the original dates otherwise.
func (r Request) Effective() generic.Period {
	if r.ModifiedDates != nil {
		return *r.ModifiedDates
	}
	return r.Period()
}

// Year is the balance year the request is charged against.
func (r Request) Year() int {
	return r.Effective().Year()
}

// =============================================================================
// STORE
// =============================================================================

type RequestFilter struct {
	StaffIDs []string
	Statuses []RequestStatus
	Type     LeaveType
	Year     int // start date within the year; 0 = any
}

// Store persists balances, requests and their ledger entries.
//
// UpdateBalance and UpdateRequest are conditional on Version and return
// generic.ErrConcurrentModification when the stored version moved on. On
// success they increment Version.
type Store interface {
	generic.Store

	GetBalance(ctx context.Context, staffID string, year int) (*Balance, error)
	// CreateBalanceIfAbsent inserts b unless a balance for (staff, year)
	// exists, and reports whether it inserted.
	CreateBalanceIfAbsent(ctx context.Context, b *Balance) (bool, error)
	UpdateBalance(ctx context.Context, b *Balance) error
	ListBalances(ctx context.Context, staffIDs []string, year int) ([]Balance, error)

	GetRequest(ctx context.Context, id string) (*Request, error)
	InsertRequest(ctx context.Context, r *Request) error
	UpdateRequest(ctx context.Context, r *Request) error
	ListRequests(ctx context.Context, f RequestFilter) ([]Request, error)
	// FindOverlapping returns the staff member's requests in one of statuses
	// whose original date range overlaps p.
	FindOverlapping(ctx context.Context, staffID string, p generic.Period, statuses []RequestStatus) ([]Request, error)
}

// TxStore runs fn inside one database transaction. If fn returns an error
// nothing fn wrote is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

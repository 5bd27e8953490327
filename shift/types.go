/*
Package shift implements the shift lifecycle: creation, claiming, clocking
in and out, completion and the manager's review.

PURPOSE:
  A shift carries two orthogonal state machines. Status tracks the work:

      open ──claim──▶ assigned ──clock in──▶ in-progress ──clock out──▶ completed
                        │  ▲                                               │
                        │  └──────────────── reject (rework) ◀─────────────┘
                        ├──cancel──▶ cancelled
                        └──missed──▶ missed

  ApprovalStatus tracks the manager's verdict on completed work
  (pending → approved | rejected) and only moves while Status is completed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift: the record and its invariants (Validate)
  - Store: persistence with optimistic locking on Version
  - Filter: list queries

SEE ALSO:
  - window.go: Clock-in/clock-out time windows
  - engine.go: Transitions
  - reminder.go: Reminder sweep
  - import.go: Bulk import
*/
package shift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// STATES
// =============================================================================

type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusMissed     Status = "missed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// =============================================================================
// SHIFT
// =============================================================================

type Shift struct {
	ID             string
	OrganizationID string
	CreatedBy      string
	Name           string

	// Assignment. AssignedTo is empty for open shifts.
	AssignedTo string
	IsOpen     bool

	// Schedule, in the shift's local time.
	Date      generic.TimePoint
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	Timezone  string // IANA name; empty falls back to the organization
	Role      string
	Location  string

	Status         Status
	ApprovalStatus ApprovalStatus
	Review         generic.Decision // last review verdict; zero when never reviewed

	ClockInTime  *time.Time
	ClockOutTime *time.Time
	WorkedHours  decimal.Decimal

	Notes        string // append-only
	ReminderSent bool

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the record invariants. Every write goes through it.
func (s *Shift) Validate() error {
	if !s.Status.Valid() {
		return &generic.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s.Status)}
	}
	if s.IsOpen != (s.Status == StatusOpen) {
		return &generic.ValidationError{Field: "isOpen", Message: fmt.Sprintf("isOpen=%v contradicts status %s", s.IsOpen, s.Status)}
	}
	if s.Status == StatusOpen && s.AssignedTo != "" {
		return &generic.ValidationError{Field: "assignedTo", Message: "open shift cannot have an assignee"}
	}
	if s.Status != StatusOpen && s.AssignedTo == "" {
		return &generic.ValidationError{Field: "assignedTo", Message: fmt.Sprintf("%s shift must have an assignee", s.Status)}
	}
	if s.ClockOutTime != nil {
		if s.ClockInTime == nil {
			return &generic.ValidationError{Field: "clockOutTime", Message: "clock-out without clock-in"}
		}
		if !s.ClockOutTime.After(*s.ClockInTime) {
			return &generic.ValidationError{Field: "clockOutTime", Message: "clock-out must be after clock-in"}
		}
		if !s.WorkedHours.Equal(WorkedHours(*s.ClockInTime, *s.ClockOutTime)) {
			return &generic.ValidationError{Field: "workedHours", Message: "worked hours must match clock times"}
		}
	}
	return nil
}

// AppendNote adds a line to the notes log.
func (s *Shift) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if s.Notes == "" {
		s.Notes = note
		return
	}
	s.Notes += "\n" + note
}

func (s *Shift) subject() generic.Subject {
	return generic.Subject{OrganizationID: s.OrganizationID, OwnerID: s.AssignedTo}
}

// =============================================================================
// STORE
// =============================================================================

// Filter narrows ListShifts. Zero fields match everything.
type Filter struct {
	OrganizationID  string
	AssignedTo      string
	Statuses        []Status
	From, To        *generic.TimePoint // inclusive bounds on Date
	ReminderPending bool               // only shifts with ReminderSent == false
}

// Store persists shifts.
//
// UpdateShift and DeleteShift are conditional on s.Version: they apply only
// if the stored version still matches and return
// generic.ErrConcurrentModification otherwise. On success UpdateShift
// increments s.Version.
type Store interface {
	GetShift(ctx context.Context, id string) (*Shift, error)
	InsertShift(ctx context.Context, s *Shift) error
	UpdateShift(ctx context.Context, s *Shift) error
	DeleteShift(ctx context.Context, id string, version int) error
	ListShifts(ctx context.Context, f Filter) ([]Shift, error)

	// MarkReminderSent flips reminder_sent from false to true and reports
	// whether this call was the one that flipped it.
	MarkReminderSent(ctx context.Context, id string) (bool, error)
}

/*
engine.go - Shift lifecycle transitions

PURPOSE:
  Engine is the only code that changes a shift. Each transition follows
  the same steps:

    1. Load the shift
    2. Authorize the caller through the approval gate
    3. Check the current state (and, for clocking, the current time)
    4. Mutate in memory and Validate the invariants
    5. Conditional update on Version (a lost race becomes ConflictError)
    6. Notify, fire-and-forget

  The caller passes now explicitly; the engine never reads the wall clock.

TIMEZONES:
  Clock windows are evaluated in the shift's own timezone, falling back to
  the organization's timezone, then to the configured default.

SEE ALSO:
  - window.go: Window arithmetic
  - generic/approval.go: Authorization rules
*/
package shift

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // DefaultTimezone must resolve on hosts without zoneinfo

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"go.uber.org/zap"
)

// DefaultTimezone is used when neither the shift nor its organization names one.
const DefaultTimezone = "Africa/Nairobi"

type Config struct {
	DefaultTimezone string
}

type Engine struct {
	store     Store
	directory generic.Directory
	notifier  notify.Notifier
	defaultTZ *time.Location
	log       *zap.Logger
}

func NewEngine(store Store, directory generic.Directory, notifier notify.Notifier, cfg Config, log *zap.Logger) (*Engine, error) {
	name := cfg.DefaultTimezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("default timezone %q: %w", name, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:     store,
		directory: directory,
		notifier:  notifier,
		defaultTZ: loc,
		log:       log.Named("shift.engine"),
	}, nil
}

// =============================================================================
// INPUTS
// =============================================================================

type AssignedShiftInput struct {
	Name      string
	StaffID   string
	Date      generic.TimePoint
	StartTime string
	EndTime   string
	Timezone  string
	Role      string
	Location  string
	Notes     string
}

type OpenShiftInput struct {
	Name      string
	Date      generic.TimePoint
	StartTime string
	EndTime   string
	Timezone  string
	Role      string
	Location  string
	Notes     string
}

// ShiftUpdate is a partial update; nil fields are left unchanged.
// An empty AssignedTo turns the shift back into an open shift.
type ShiftUpdate struct {
	Name       *string
	AssignedTo *string
	Date       *generic.TimePoint
	StartTime  *string
	EndTime    *string
	Timezone   *string
	Role       *string
	Location   *string
	Notes      *string // appended, never replaces
}

type ReviewDecision string

const (
	Approve ReviewDecision = "approve"
	Reject  ReviewDecision = "reject"
)

// =============================================================================
// CREATE
// =============================================================================

// CreateAssignedShift creates a shift assigned to a staff member of the
// manager's organization.
func (e *Engine) CreateAssignedShift(ctx context.Context, manager generic.Actor, in AssignedShiftInput, now time.Time) (*Shift, error) {
	if err := e.authorizeCreate(manager); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, &generic.ValidationError{Field: "name", Message: "is required"}
	}
	if in.StaffID == "" {
		return nil, &generic.ValidationError{Field: "assignedTo", Message: "is required"}
	}
	if err := validateSchedule(in.Date, in.StartTime, in.EndTime, in.Timezone); err != nil {
		return nil, err
	}
	staff, err := e.staffInOrganization(ctx, in.StaffID, manager.OrganizationID)
	if err != nil {
		return nil, err
	}

	s := &Shift{
		ID:             uuid.NewString(),
		OrganizationID: manager.OrganizationID,
		CreatedBy:      manager.ID,
		Name:           strings.TrimSpace(in.Name),
		AssignedTo:     staff.ID,
		Date:           in.Date,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Timezone:       in.Timezone,
		Role:           in.Role,
		Location:       in.Location,
		Notes:          strings.TrimSpace(in.Notes),
		Status:         StatusAssigned,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.insert(ctx, s); err != nil {
		return nil, err
	}

	e.log.Info("shift created", zap.String("shift", s.ID), zap.String("assignee", s.AssignedTo))
	e.notify(ctx, notify.Notification{
		RecipientID: s.AssignedTo,
		Type:        notify.ShiftAssigned,
		Title:       "New Shift Assigned",
		Message:     fmt.Sprintf("You have been assigned a new shift on %s from %s to %s", s.Date, s.StartTime, s.EndTime),
		RelatedID:   s.ID,
	})
	return s, nil
}

// CreateOpenShift creates an unassigned shift any staff member of the
// organization may claim.
func (e *Engine) CreateOpenShift(ctx context.Context, manager generic.Actor, in OpenShiftInput, now time.Time) (*Shift, error) {
	if err := e.authorizeCreate(manager); err != nil {
		return nil, err
	}
	if err := validateSchedule(in.Date, in.StartTime, in.EndTime, in.Timezone); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Open Shift"
	}

	s := &Shift{
		ID:             uuid.NewString(),
		OrganizationID: manager.OrganizationID,
		CreatedBy:      manager.ID,
		Name:           name,
		IsOpen:         true,
		Date:           in.Date,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Timezone:       in.Timezone,
		Role:           in.Role,
		Location:       in.Location,
		Notes:          strings.TrimSpace(in.Notes),
		Status:         StatusOpen,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.insert(ctx, s); err != nil {
		return nil, err
	}
	e.log.Info("open shift created", zap.String("shift", s.ID))
	return s, nil
}

// =============================================================================
// CLAIM / CLOCK IN / CLOCK OUT
// =============================================================================

// ClaimOpenShift assigns an open shift to the calling staff member. Only one
// of several concurrent claims succeeds; the others get a ConflictError.
func (e *Engine) ClaimOpenShift(ctx context.Context, staff generic.Actor, id string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(staff, s.subject(), generic.StaffOfOrganization.For("claim open shifts")); err != nil {
		return nil, err
	}
	if s.Status != StatusOpen || !s.IsOpen {
		return nil, &generic.ConflictError{Resource: "shift", ID: id, Message: "shift is no longer open for claiming"}
	}

	s.AssignedTo = staff.ID
	s.Status = StatusAssigned
	s.IsOpen = false
	if err := e.save(ctx, s, now); err != nil {
		if errors.Is(err, generic.ErrConflict) {
			return nil, &generic.ConflictError{Resource: "shift", ID: id, Message: "shift has already been claimed"}
		}
		return nil, err
	}

	e.log.Info("open shift claimed", zap.String("shift", id), zap.String("staff", staff.ID))
	return s, nil
}

// ClockIn records the start of work. Allowed from one hour before the shift
// start until two hours after it, both ends inclusive.
func (e *Engine) ClockIn(ctx context.Context, staff generic.Actor, id string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(staff, s.subject(), generic.OwnerOnly.For("clock in")); err != nil {
		return nil, err
	}
	if s.ClockInTime != nil {
		return nil, &generic.PreconditionError{
			Resource: "shift",
			Current:  "clocked in at " + s.ClockInTime.Format(time.RFC3339),
			Required: "not clocked in",
		}
	}
	if s.Status != StatusAssigned {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: string(StatusAssigned)}
	}

	start, err := e.Start(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := clockInAllowed(now, start); err != nil {
		return nil, err
	}

	in := now
	s.ClockInTime = &in
	s.Status = StatusInProgress
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}
	e.log.Info("clocked in", zap.String("shift", id), zap.Time("at", now))
	return s, nil
}

// ClockOut records the end of work, at least MinimumWorked after clock-in,
// and hands the shift to the manager for review.
func (e *Engine) ClockOut(ctx context.Context, staff generic.Actor, id string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(staff, s.subject(), generic.OwnerOnly.For("clock out")); err != nil {
		return nil, err
	}
	if s.ClockInTime == nil {
		return nil, &generic.PreconditionError{Resource: "shift", Current: "not clocked in", Required: "clocked in"}
	}
	if s.ClockOutTime != nil {
		return nil, &generic.PreconditionError{
			Resource: "shift",
			Current:  "clocked out at " + s.ClockOutTime.Format(time.RFC3339),
			Required: "not clocked out",
		}
	}
	if remaining := ClockOutRemaining(now, *s.ClockInTime); remaining > 0 {
		return nil, &generic.ForbiddenError{
			Reason:     "minimum shift duration is 15 minutes: " + minutesRemaining(remaining),
			RetryAfter: remaining,
		}
	}

	out := now
	s.ClockOutTime = &out
	s.WorkedHours = WorkedHours(*s.ClockInTime, out)
	s.Status = StatusCompleted
	s.ApprovalStatus = ApprovalPending
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}

	e.log.Info("clocked out", zap.String("shift", id), zap.String("hours", s.WorkedHours.StringFixed(2)))
	e.notifyCompleted(ctx, s)
	return s, nil
}

// MarkCompleted completes a shift without the clock-out duration check.
// If the shift was clocked in, worked hours are derived as in ClockOut.
func (e *Engine) MarkCompleted(ctx context.Context, actor generic.Actor, id, completionNotes string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(actor, s.subject(), generic.OwnerOrManager.For("complete this shift")); err != nil {
		return nil, err
	}
	if s.Status != StatusAssigned && s.Status != StatusInProgress {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: "assigned or in-progress"}
	}

	if completionNotes = strings.TrimSpace(completionNotes); completionNotes != "" {
		s.AppendNote("Completion notes: " + completionNotes)
	}
	if s.ClockInTime != nil {
		if s.ClockOutTime == nil && now.After(*s.ClockInTime) {
			out := now
			s.ClockOutTime = &out
		}
		if s.ClockOutTime != nil {
			s.WorkedHours = WorkedHours(*s.ClockInTime, *s.ClockOutTime)
		}
	}
	s.Status = StatusCompleted
	s.ApprovalStatus = ApprovalPending
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}

	e.log.Info("shift marked completed", zap.String("shift", id), zap.String("by", actor.ID))
	if actor.ID == s.AssignedTo {
		e.notifyCompleted(ctx, s)
	}
	return s, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// ReviewShift records the manager's verdict on a completed shift. A
// rejection sends the shift back to assigned for rework: clock times are
// cleared so the staff member can clock in again, and the rejected times are
// kept in the notes.
func (e *Engine) ReviewShift(ctx context.Context, manager generic.Actor, id string, decision ReviewDecision, reason string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, s.subject(), generic.ManagerOfOrganization.For("review shifts")); err != nil {
		return nil, err
	}
	if s.Status != StatusCompleted {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: string(StatusCompleted)}
	}

	reason = strings.TrimSpace(reason)
	switch decision {
	case Approve:
		s.ApprovalStatus = ApprovalApproved
	case Reject:
		if reason == "" {
			return nil, &generic.ValidationError{Field: "reason", Message: "is required when rejecting a shift"}
		}
		s.ApprovalStatus = ApprovalRejected
		s.Status = StatusAssigned
		s.AppendNote(rejectionNote(s, manager, reason, now))
		s.ClockInTime = nil
		s.ClockOutTime = nil
		s.WorkedHours = decimal.Zero
	default:
		return nil, &generic.ValidationError{Field: "decision", Message: fmt.Sprintf("must be %q or %q", Approve, Reject)}
	}
	s.Review = generic.NewDecision(manager, now, reason)

	// The assignee is read from the same version the update is conditional
	// on, so the notification goes to whoever did the rejected work.
	assignee := s.AssignedTo
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}

	e.log.Info("shift reviewed", zap.String("shift", id), zap.String("decision", string(decision)))
	if decision == Reject {
		e.notify(ctx, notify.Notification{
			RecipientID: assignee,
			Type:        notify.ShiftRejected,
			Title:       "Shift Submission Requires Revision",
			Message:     fmt.Sprintf("Your shift submission for %s requires revision: %s", s.Date, reason),
			RelatedID:   s.ID,
		})
	}
	return s, nil
}

func rejectionNote(s *Shift, manager generic.Actor, reason string, now time.Time) string {
	note := fmt.Sprintf("[%s] Rejected by %s: %s", now.UTC().Format(time.RFC3339), manager.ID, reason)
	if s.ClockInTime != nil && s.ClockOutTime != nil {
		note += fmt.Sprintf(" (submitted %s to %s, %s h)",
			s.ClockInTime.UTC().Format(time.RFC3339), s.ClockOutTime.UTC().Format(time.RFC3339), s.WorkedHours.StringFixed(2))
	}
	return note
}

// =============================================================================
// UPDATE / CANCEL / MISSED / DELETE
// =============================================================================

// UpdateShift applies a partial update. Assignee and schedule changes are
// refused once work has started.
func (e *Engine) UpdateShift(ctx context.Context, manager generic.Actor, id string, u ShiftUpdate, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, s.subject(), generic.ManagerOfOrganization.For("update shifts")); err != nil {
		return nil, err
	}

	previousAssignee := s.AssignedTo
	reassigned := u.AssignedTo != nil && *u.AssignedTo != s.AssignedTo
	rescheduled := (u.Date != nil && !u.Date.Equal(s.Date)) ||
		(u.StartTime != nil && *u.StartTime != s.StartTime) ||
		(u.EndTime != nil && *u.EndTime != s.EndTime) ||
		(u.Timezone != nil && *u.Timezone != s.Timezone)

	if (reassigned || rescheduled) && s.Status != StatusOpen && s.Status != StatusAssigned {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: "open or assigned"}
	}

	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return nil, &generic.ValidationError{Field: "name", Message: "cannot be empty"}
		}
		s.Name = strings.TrimSpace(*u.Name)
	}
	if u.Date != nil {
		s.Date = *u.Date
	}
	if u.StartTime != nil {
		s.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		s.EndTime = *u.EndTime
	}
	if u.Timezone != nil {
		s.Timezone = *u.Timezone
	}
	if u.Role != nil {
		s.Role = *u.Role
	}
	if u.Location != nil {
		s.Location = *u.Location
	}
	if u.Notes != nil {
		s.AppendNote(*u.Notes)
	}
	if err := validateSchedule(s.Date, s.StartTime, s.EndTime, s.Timezone); err != nil {
		return nil, err
	}

	if reassigned {
		if *u.AssignedTo == "" {
			s.AssignedTo = ""
			s.Status = StatusOpen
			s.IsOpen = true
		} else {
			staff, err := e.staffInOrganization(ctx, *u.AssignedTo, s.OrganizationID)
			if err != nil {
				return nil, err
			}
			s.AssignedTo = staff.ID
			s.Status = StatusAssigned
			s.IsOpen = false
		}
	}
	if rescheduled {
		s.ReminderSent = false
	}

	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}
	e.log.Info("shift updated", zap.String("shift", id), zap.Bool("reassigned", reassigned), zap.Bool("rescheduled", rescheduled))

	switch {
	case reassigned:
		if previousAssignee != "" {
			e.notify(ctx, notify.Notification{
				RecipientID: previousAssignee,
				Type:        notify.ShiftCancelled,
				Title:       "Shift Cancelled",
				Message:     fmt.Sprintf("Your shift on %s from %s to %s has been reassigned", s.Date, s.StartTime, s.EndTime),
				RelatedID:   s.ID,
			})
		}
		e.notify(ctx, notify.Notification{
			RecipientID: s.AssignedTo,
			Type:        notify.ShiftAssigned,
			Title:       "New Shift Assigned",
			Message:     fmt.Sprintf("You have been assigned a new shift on %s from %s to %s", s.Date, s.StartTime, s.EndTime),
			RelatedID:   s.ID,
		})
	case rescheduled:
		e.notify(ctx, notify.Notification{
			RecipientID: s.AssignedTo,
			Type:        notify.ShiftUpdated,
			Title:       "Shift Updated",
			Message:     fmt.Sprintf("Your shift on %s has been updated", s.Date),
			RelatedID:   s.ID,
		})
	}
	return s, nil
}

// CancelShift moves an assigned shift to cancelled.
func (e *Engine) CancelShift(ctx context.Context, manager generic.Actor, id, reason string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, s.subject(), generic.ManagerOfOrganization.For("cancel shifts")); err != nil {
		return nil, err
	}
	if s.Status != StatusAssigned {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: string(StatusAssigned)}
	}

	reason = strings.TrimSpace(reason)
	s.Status = StatusCancelled
	s.AppendNote(fmt.Sprintf("[%s] Cancelled by %s: %s", now.UTC().Format(time.RFC3339), manager.ID, reason))
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}

	e.log.Info("shift cancelled", zap.String("shift", id))
	message := fmt.Sprintf("Your shift on %s from %s to %s has been cancelled", s.Date, s.StartTime, s.EndTime)
	if reason != "" {
		message += ": " + reason
	}
	e.notify(ctx, notify.Notification{
		RecipientID: s.AssignedTo,
		Type:        notify.ShiftCancelled,
		Title:       "Shift Cancelled",
		Message:     message,
		RelatedID:   s.ID,
	})
	return s, nil
}

// MarkMissed moves an assigned shift that was never clocked in to missed,
// once its clock-in window has closed.
func (e *Engine) MarkMissed(ctx context.Context, manager generic.Actor, id string, now time.Time) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, s.subject(), generic.ManagerOfOrganization.For("mark shifts missed")); err != nil {
		return nil, err
	}
	if s.Status != StatusAssigned || s.ClockInTime != nil {
		return nil, &generic.PreconditionError{Resource: "shift", Current: string(s.Status), Required: "assigned and never clocked in"}
	}

	start, err := e.Start(ctx, s)
	if err != nil {
		return nil, err
	}
	window := ClockInWindow(start)
	if !now.After(window.Closes) {
		return nil, &generic.ForbiddenError{
			Reason:     "clock-in window is still open until " + window.Closes.Format(time.RFC3339),
			Window:     &window,
			RetryAfter: window.Closes.Sub(now) + time.Nanosecond,
		}
	}

	s.Status = StatusMissed
	if err := e.save(ctx, s, now); err != nil {
		return nil, err
	}

	e.log.Info("shift missed", zap.String("shift", id), zap.String("assignee", s.AssignedTo))
	e.notify(ctx, notify.Notification{
		RecipientID: s.AssignedTo,
		Type:        notify.ShiftMissed,
		Title:       "Missed Shift Alert",
		Message:     fmt.Sprintf("You missed your shift on %s from %s to %s", s.Date, s.StartTime, s.EndTime),
		RelatedID:   s.ID,
	})
	return s, nil
}

// DeleteShift hard-deletes a shift. Allowed for managers of the organization
// and for the assignee.
func (e *Engine) DeleteShift(ctx context.Context, actor generic.Actor, id string) error {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return err
	}
	if err := generic.Authorize(actor, s.subject(), generic.OwnerOrManager.For("delete this shift")); err != nil {
		return err
	}
	if err := e.store.DeleteShift(ctx, id, s.Version); err != nil {
		return conflict(err, id)
	}

	e.log.Info("shift deleted", zap.String("shift", id), zap.String("by", actor.ID))
	if s.AssignedTo != "" && s.AssignedTo != actor.ID {
		e.notify(ctx, notify.Notification{
			RecipientID: s.AssignedTo,
			Type:        notify.ShiftCancelled,
			Title:       "Shift Cancelled",
			Message:     fmt.Sprintf("Your shift on %s from %s to %s has been cancelled", s.Date, s.StartTime, s.EndTime),
			RelatedID:   s.ID,
		})
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// GetShift returns a shift visible to actor: managers see their organization,
// staff see their own shifts and open shifts.
func (e *Engine) GetShift(ctx context.Context, actor generic.Actor, id string) (*Shift, error) {
	s, err := e.store.GetShift(ctx, id)
	if err != nil {
		return nil, err
	}
	rule := generic.OwnerOrManager.For("view this shift")
	if s.Status == StatusOpen {
		rule = generic.Rule{Action: "view this shift", Relation: generic.RelationSameOrganization}
	}
	if err := generic.Authorize(actor, s.subject(), rule); err != nil {
		return nil, err
	}
	return s, nil
}

// ListShifts lists the manager's organization, narrowed by f.
func (e *Engine) ListShifts(ctx context.Context, manager generic.Actor, f Filter) ([]Shift, error) {
	if err := generic.Authorize(manager, generic.Subject{OrganizationID: manager.OrganizationID},
		generic.ManagerOfOrganization.For("list all shifts")); err != nil {
		return nil, err
	}
	f.OrganizationID = manager.OrganizationID
	return e.store.ListShifts(ctx, f)
}

// ListMyShifts lists shifts assigned to the caller.
func (e *Engine) ListMyShifts(ctx context.Context, actor generic.Actor) ([]Shift, error) {
	return e.store.ListShifts(ctx, Filter{OrganizationID: actor.OrganizationID, AssignedTo: actor.ID})
}

// ListOpenShifts lists claimable shifts in the caller's organization.
func (e *Engine) ListOpenShifts(ctx context.Context, actor generic.Actor) ([]Shift, error) {
	return e.store.ListShifts(ctx, Filter{OrganizationID: actor.OrganizationID, Statuses: []Status{StatusOpen}})
}

// =============================================================================
// TIMEZONE
// =============================================================================

// Location resolves the timezone a shift's times are expressed in.
func (e *Engine) Location(ctx context.Context, s *Shift) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
		e.log.Warn("invalid shift timezone, falling back", zap.String("shift", s.ID), zap.String("timezone", s.Timezone))
	}
	if e.directory != nil && s.OrganizationID != "" {
		org, err := e.directory.GetOrganization(ctx, s.OrganizationID)
		if err == nil && org.Timezone != "" {
			if loc, err := time.LoadLocation(org.Timezone); err == nil {
				return loc
			}
		}
	}
	return e.defaultTZ
}

// Start is the shift's start instant.
func (e *Engine) Start(ctx context.Context, s *Shift) (time.Time, error) {
	return ShiftStart(s.Date, s.StartTime, e.Location(ctx, s))
}

// =============================================================================
// HELPERS
// =============================================================================

func clockInAllowed(now, start time.Time) error {
	window := ClockInWindow(start)
	if window.Contains(now) {
		return nil
	}
	if now.Before(window.Opens) {
		return &generic.ForbiddenError{
			Reason:     "clock-in opens at " + window.Opens.Format(time.RFC3339) + ", one hour before the shift starts",
			Window:     &window,
			RetryAfter: window.Opens.Sub(now),
		}
	}
	return &generic.ForbiddenError{
		Reason: "clock-in closed at " + window.Closes.Format(time.RFC3339) + ", two hours after the shift started",
		Window: &window,
	}
}

func validateSchedule(date generic.TimePoint, startTime, endTime, timezone string) error {
	if date.IsZero() {
		return &generic.ValidationError{Field: "date", Message: "is required"}
	}
	if startTime == "" {
		return &generic.ValidationError{Field: "startTime", Message: "is required"}
	}
	if endTime == "" {
		return &generic.ValidationError{Field: "endTime", Message: "is required"}
	}
	if _, _, err := generic.ParseClock(startTime); err != nil {
		return &generic.ValidationError{Field: "startTime", Message: err.Error()}
	}
	if _, _, err := generic.ParseClock(endTime); err != nil {
		return &generic.ValidationError{Field: "endTime", Message: err.Error()}
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return &generic.ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", timezone)}
		}
	}
	return nil
}

func (e *Engine) authorizeCreate(manager generic.Actor) error {
	return generic.Authorize(manager, generic.Subject{OrganizationID: manager.OrganizationID},
		generic.ManagerOfOrganization.For("create shifts"))
}

// staffInOrganization resolves a staff member, treating members of other
// organizations as absent.
func (e *Engine) staffInOrganization(ctx context.Context, staffID, organizationID string) (*generic.Member, error) {
	m, err := e.directory.GetMember(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if m.OrganizationID != organizationID || m.Role != generic.RoleStaff {
		return nil, &generic.NotFoundError{Resource: "staff", ID: staffID}
	}
	return m, nil
}

func (e *Engine) insert(ctx context.Context, s *Shift) error {
	s.Version = 1
	if err := s.Validate(); err != nil {
		return err
	}
	if err := e.store.InsertShift(ctx, s); err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

func (e *Engine) save(ctx context.Context, s *Shift, now time.Time) error {
	s.UpdatedAt = now
	if err := s.Validate(); err != nil {
		return err
	}
	if err := e.store.UpdateShift(ctx, s); err != nil {
		return conflict(err, s.ID)
	}
	return nil
}

func conflict(err error, id string) error {
	if errors.Is(err, generic.ErrConcurrentModification) {
		return &generic.ConflictError{Resource: "shift", ID: id, Message: "modified concurrently, reload and retry"}
	}
	return err
}

func (e *Engine) notify(ctx context.Context, n notify.Notification) {
	notify.Dispatch(ctx, e.log, e.notifier, n)
}

func (e *Engine) notifyCompleted(ctx context.Context, s *Shift) {
	e.notify(ctx, notify.Notification{
		RecipientID: s.CreatedBy,
		Type:        notify.ShiftCompleted,
		Title:       "Shift Completed",
		Message:     fmt.Sprintf("Shift %q on %s was completed and is awaiting review", s.Name, s.Date),
		RelatedID:   s.ID,
	})
}

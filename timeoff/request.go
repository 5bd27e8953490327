package timeoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"go.uber.org/zap"
)

// =============================================================================
// REQUEST WORKFLOW - Handles request lifecycle with transactional guarantees
// =============================================================================

// CancelComment is recorded on a request its owner withdrew.
const CancelComment = "Cancelled by staff member"

// AssignComment is recorded on leave a manager created pre-approved.
const AssignComment = "Leave assigned by manager"

type Workflow struct {
	store     TxStore
	ledger    *BalanceLedger
	directory generic.Directory
	notifier  notify.Notifier
	log       *zap.Logger
}

func NewWorkflow(store TxStore, ledger *BalanceLedger, directory generic.Directory, notifier notify.Notifier, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		store:     store,
		ledger:    ledger,
		directory: directory,
		notifier:  notifier,
		log:       log.Named("timeoff.workflow"),
	}
}

type SubmitInput struct {
	Type        LeaveType
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	Reason      string
	Attachments []string
}

type ReviewInput struct {
	Action   RequestStatus // approved, rejected or modified
	Comments string

	// Optional for modified; a missing bound keeps the original date.
	ModifiedStart *generic.TimePoint
	ModifiedEnd   *generic.TimePoint
}

type AssignInput struct {
	StaffID     string
	Type        LeaveType
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	Reason      string
	Attachments []string
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit creates a pending request. Annual leave must fit in the remaining
// balance of the year the leave starts in; nothing is deducted until
// approval. The overlap check and the insert run in one transaction.
func (w *Workflow) Submit(ctx context.Context, staff generic.Actor, in SubmitInput, now time.Time) (*Request, error) {
	member, err := w.directory.GetMember(ctx, staff.ID)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(staff, memberSubject(member), generic.Rule{
		Action: "submit leave requests", Roles: []generic.Role{generic.RoleStaff}, Relation: generic.RelationOwner,
	}); err != nil {
		return nil, err
	}
	if err := validateDates(in.Type, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if in.StartDate.Before(generic.DayOf(now)) {
		return nil, &generic.ValidationError{Field: "startDate", Message: "cannot request leave for past dates"}
	}
	attachments := cleanAttachments(in.Attachments)
	if in.Type == LeaveSick && len(attachments) == 0 {
		return nil, &generic.ValidationError{Field: "attachments", Message: "doctor's report is required for sick leave"}
	}

	req := &Request{
		ID:             uuid.NewString(),
		StaffID:        staff.ID,
		OrganizationID: member.OrganizationID,
		Type:           in.Type,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		DaysRequested:  generic.InclusiveDays(in.StartDate, in.EndDate),
		Reason:         strings.TrimSpace(in.Reason),
		Attachments:    attachments,
		Status:         StatusPending,
		SubmittedAt:    now,
		Version:        1,
	}

	err = w.store.WithTx(ctx, func(st Store) error {
		if req.Type == LeaveAnnual {
			b, err := w.ledger.getOrInit(ctx, st, req.StaffID, req.Year(), now)
			if err != nil {
				return err
			}
			if err := w.ledger.Validate(b, req.DaysRequested); err != nil {
				return err
			}
		}
		if err := checkOverlap(ctx, st, req); err != nil {
			return err
		}
		if err := st.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert leave request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave requested",
		zap.String("request", req.ID), zap.String("staff", req.StaffID),
		zap.String("type", string(req.Type)), zap.Int("days", req.DaysRequested))
	w.notify(ctx, notify.Notification{
		RecipientID: member.ManagerID,
		Type:        notify.LeaveRequested,
		Title:       "New Leave Request",
		Message: fmt.Sprintf("%s has submitted a %s leave request for %d days (%s to %s)",
			displayName(member), req.Type, req.DaysRequested, req.StartDate, req.EndDate),
		RelatedID: req.ID,
	})
	return req, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// Review rules on a pending request. Approving annual leave commits the days
// to the balance in the same transaction as the status change; if the
// balance can no longer cover them nothing is written and a conflict is
// returned.
func (w *Workflow) Review(ctx context.Context, manager generic.Actor, id string, in ReviewInput, now time.Time) (*Request, error) {
	switch in.Action {
	case StatusApproved, StatusRejected, StatusModified:
	default:
		return nil, &generic.ValidationError{Field: "action", Message: "must be approved, rejected or modified"}
	}

	current, err := w.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	member, err := w.directory.GetMember(ctx, current.StaffID)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, memberSubject(member), generic.DirectManagerOnly.For("review this leave request")); err != nil {
		return nil, err
	}

	var req *Request
	err = w.store.WithTx(ctx, func(st Store) error {
		req, err = st.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return &generic.PreconditionError{Resource: "leave request", Current: string(req.Status), Required: string(StatusPending)}
		}

		if in.Action == StatusModified && (in.ModifiedStart != nil || in.ModifiedEnd != nil) {
			modified := req.Period()
			if in.ModifiedStart != nil {
				modified.Start = *in.ModifiedStart
			}
			if in.ModifiedEnd != nil {
				modified.End = *in.ModifiedEnd
			}
			if !modified.Valid() {
				return &generic.ValidationError{Field: "modifiedDates", Message: "end date must not be before start date"}
			}
			req.ModifiedDates = &modified
			req.DaysRequested = modified.Days()
		}

		if in.Action == StatusApproved && req.Type == LeaveAnnual {
			if _, err := w.ledger.commit(ctx, st, req.StaffID, req.Year(), req.DaysRequested, req.ID, manager.ID, now); err != nil {
				return err
			}
		}

		req.Status = in.Action
		req.Review = generic.NewDecision(manager, now, strings.TrimSpace(in.Comments))
		return requestConflict(st.UpdateRequest(ctx, req), req.ID)
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave reviewed", zap.String("request", id), zap.String("action", string(in.Action)))
	w.notify(ctx, reviewNotification(req, manager))
	return req, nil
}

func reviewNotification(req *Request, manager generic.Actor) notify.Notification {
	n := notify.Notification{RecipientID: req.StaffID, RelatedID: req.ID}
	switch req.Status {
	case StatusApproved:
		n.Type, n.Title = notify.LeaveApproved, "Leave Request Approved"
	case StatusRejected:
		n.Type, n.Title = notify.LeaveRejected, "Leave Request Rejected"
	default:
		n.Type, n.Title = notify.LeaveModified, "Leave Request Modified"
	}
	n.Message = fmt.Sprintf("Your leave request has been %s by your manager", req.Status)
	if req.Review.Comment != "" {
		n.Message += ": " + req.Review.Comment
	}
	return n
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws the caller's own pending request. It becomes rejected
// with a system comment; the balance is untouched.
func (w *Workflow) Cancel(ctx context.Context, staff generic.Actor, id string, now time.Time) (*Request, error) {
	req, err := w.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	subject := generic.Subject{OrganizationID: req.OrganizationID, OwnerID: req.StaffID}
	if err := generic.Authorize(staff, subject, generic.OwnerOnly.For("cancel leave requests")); err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, &generic.PreconditionError{Resource: "leave request", Current: string(req.Status), Required: string(StatusPending)}
	}

	req.Status = StatusRejected
	req.Review = generic.NewDecision(staff, now, CancelComment)
	if err := requestConflict(w.store.UpdateRequest(ctx, req), req.ID); err != nil {
		return nil, err
	}
	w.log.Info("leave cancelled", zap.String("request", id))
	return req, nil
}

// =============================================================================
// ASSIGN
// =============================================================================

// Assign creates leave that is approved from the start. The balance check,
// the overlap check, the insert and the commit share one transaction.
func (w *Workflow) Assign(ctx context.Context, manager generic.Actor, in AssignInput, now time.Time) (*Request, error) {
	member, err := w.directory.GetMember(ctx, in.StaffID)
	if err != nil {
		return nil, err
	}
	if err := generic.Authorize(manager, memberSubject(member), generic.DirectManagerOnly.For("assign leave")); err != nil {
		return nil, err
	}
	if err := validateDates(in.Type, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	req := &Request{
		ID:             uuid.NewString(),
		StaffID:        member.ID,
		OrganizationID: member.OrganizationID,
		Type:           in.Type,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		DaysRequested:  generic.InclusiveDays(in.StartDate, in.EndDate),
		Reason:         strings.TrimSpace(in.Reason),
		Attachments:    cleanAttachments(in.Attachments),
		Status:         StatusApproved,
		Review:         generic.NewDecision(manager, now, AssignComment),
		SubmittedAt:    now,
		Version:        1,
	}

	err = w.store.WithTx(ctx, func(st Store) error {
		if req.Type == LeaveAnnual {
			b, err := w.ledger.getOrInit(ctx, st, req.StaffID, req.Year(), now)
			if err != nil {
				return err
			}
			if err := w.ledger.Validate(b, req.DaysRequested); err != nil {
				return err
			}
		}
		if err := checkOverlap(ctx, st, req); err != nil {
			return err
		}
		if err := st.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert leave request: %w", err)
		}
		if req.Type == LeaveAnnual {
			if _, err := w.ledger.commit(ctx, st, req.StaffID, req.Year(), req.DaysRequested, req.ID, manager.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("leave assigned", zap.String("request", req.ID), zap.String("staff", req.StaffID), zap.Int("days", req.DaysRequested))
	w.notify(ctx, notify.Notification{
		RecipientID: req.StaffID,
		Type:        notify.LeaveAssigned,
		Title:       "Leave Assigned by Manager",
		Message:     fmt.Sprintf("Your manager has assigned you %s leave from %s to %s (%d days)", req.Type, req.StartDate, req.EndDate, req.DaysRequested),
		RelatedID:   req.ID,
	})
	return req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validateDates(t LeaveType, start, end generic.TimePoint) error {
	if !t.Valid() {
		return &generic.ValidationError{Field: "type", Message: "must be annual or sick"}
	}
	if start.IsZero() {
		return &generic.ValidationError{Field: "startDate", Message: "is required"}
	}
	if end.IsZero() {
		return &generic.ValidationError{Field: "endDate", Message: "is required"}
	}
	if end.Before(start) {
		return &generic.ValidationError{Field: "endDate", Message: "end date must not be before start date"}
	}
	return nil
}

func checkOverlap(ctx context.Context, st Store, req *Request) error {
	existing, err := st.FindOverlapping(ctx, req.StaffID, req.Period(), ActiveStatuses)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	if len(existing) > 0 {
		other := existing[0]
		return &generic.ConflictError{
			Resource: "leave request",
			ID:       other.ID,
			Message:  fmt.Sprintf("already %s for %s, which overlaps these dates", other.Status, other.Period()),
		}
	}
	return nil
}

func requestConflict(err error, id string) error {
	if errors.Is(err, generic.ErrConcurrentModification) {
		return &generic.ConflictError{Resource: "leave request", ID: id, Message: "modified concurrently, reload and retry"}
	}
	return err
}

func cleanAttachments(in []string) []string {
	var out []string
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func displayName(m *generic.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

func (w *Workflow) notify(ctx context.Context, n notify.Notification) {
	notify.Dispatch(ctx, w.log, w.notifier, n)
}

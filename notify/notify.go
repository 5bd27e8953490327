/*
Package notify delivers in-app notifications about shift and leave transitions.

PURPOSE:
  Engines tell people what happened (a shift was assigned, a leave request
  was approved) after a transition commits. Delivery is fire-and-forget:
  a failed notification is logged and dropped, it never fails or rolls
  back the transition that caused it.

KEY CONCEPTS:
  Notification: One message to one recipient about one record
  Notifier:     Anything that can deliver a Notification
  InApp:        Notifier that persists to the notifications table
  Dispatch:     Helper engines call; swallows and logs errors

SEE ALSO:
  - store/sqlite/notifications.go: Persistence
  - api/notifications.go: HTTP endpoints for the inbox
*/
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// NOTIFICATION
// =============================================================================

type Type string

const (
	ShiftAssigned  Type = "shift_assigned"
	ShiftSchedule  Type = "shift_schedule_created"
	ShiftUpdated   Type = "shift_updated"
	ShiftCancelled Type = "shift_cancelled"
	ShiftRejected  Type = "shift_rejected"
	ShiftReminder  Type = "shift_reminder"
	ShiftCompleted Type = "shift_completed"
	ShiftMissed    Type = "missed_shift"

	LeaveRequested Type = "leave_request"
	LeaveApproved  Type = "leave_approved"
	LeaveRejected  Type = "leave_rejected"
	LeaveModified  Type = "leave_modified"
	LeaveAssigned  Type = "leave_assigned"
)

type Notification struct {
	ID          string
	RecipientID string
	Type        Type
	Title       string
	Message     string
	RelatedID   string // shift or leave request id
	Read        bool
	CreatedAt   time.Time
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Store persists notifications for the in-app inbox.
type Store interface {
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
}

// =============================================================================
// IN-APP NOTIFIER
// =============================================================================

type InApp struct {
	store Store
	now   func() time.Time
}

func NewInApp(store Store) *InApp {
	return &InApp{store: store, now: time.Now}
}

func (a *InApp) Notify(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = a.now().UTC()
	}
	return a.store.CreateNotification(ctx, n)
}

func (a *InApp) List(ctx context.Context, recipientID string, unreadOnly bool) ([]Notification, error) {
	return a.store.ListNotifications(ctx, recipientID, unreadOnly)
}

func (a *InApp) MarkRead(ctx context.Context, id, recipientID string) error {
	return a.store.MarkNotificationRead(ctx, id, recipientID)
}

func (a *InApp) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return a.store.MarkAllNotificationsRead(ctx, recipientID)
}

// =============================================================================
// DISPATCH
// =============================================================================

// Dispatch sends n through notifier and logs any failure. It never returns an
// error: a transition that already committed must not fail because its
// notification could not be delivered. A nil notifier or an empty recipient
// is a no-op.
func Dispatch(ctx context.Context, log *zap.Logger, notifier Notifier, n Notification) {
	if notifier == nil || n.RecipientID == "" {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		log.Warn("notification dropped",
			zap.String("type", string(n.Type)),
			zap.String("recipient", n.RecipientID),
			zap.String("related", n.RelatedID),
			zap.Error(err),
		)
	}
}

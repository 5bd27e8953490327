package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
)

// =============================================================================
// NOTIFICATIONS (notify.Store interface)
// =============================================================================

func (c *conn) CreateNotification(ctx context.Context, n notify.Notification) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, related_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.RelatedID, n.Read, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's notifications, newest first.
func (c *conn) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]notify.Notification, error) {
	query := `
		SELECT id, recipient_id, type, title, message, related_id, read, created_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := c.q.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var (
			n         notify.Notification
			typ       string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message, &n.RelatedID, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.Type = notify.Type(typ)
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the recipient's notifications read.
// Someone else's notification is reported as not found.
func (c *conn) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = ? AND recipient_id = ?`, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Resource: "notification", ID: id}
	}
	return nil
}

func (c *conn) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	res, err := c.q.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = ? AND read = FALSE`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
)

// =============================================================================
// SHIFTS (shift.Store interface)
// =============================================================================

const shiftColumns = `
	id, organization_id, created_by, name, assigned_to, is_open, date, start_time, end_time,
	timezone, role, location, status, approval_status, reviewed_by, reviewed_at, review_comment,
	clock_in_time, clock_out_time, worked_hours, notes, reminder_sent, version, created_at, updated_at`

func (c *conn) GetShift(ctx context.Context, id string) (*shift.Shift, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	s, err := scanShift(row)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "shift", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return s, nil
}

func (c *conn) InsertShift(ctx context.Context, s *shift.Shift) error {
	if s.Version == 0 {
		s.Version = 1
	}
	_, err := c.q.ExecContext(ctx, `INSERT INTO shifts (`+shiftColumns+`)
		VALUES (`+placeholders(25)+`)`,
		s.ID, s.OrganizationID, s.CreatedBy, s.Name, s.AssignedTo, s.IsOpen, s.Date.String(),
		s.StartTime, s.EndTime, s.Timezone, s.Role, s.Location, s.Status, s.ApprovalStatus,
		s.Review.ReviewerID, nullTime(&s.Review.At), s.Review.Comment,
		nullTime(s.ClockInTime), nullTime(s.ClockOutTime), s.WorkedHours.String(), s.Notes,
		s.ReminderSent, s.Version, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// UpdateShift writes every mutable column if the stored version still
// equals s.Version, then bumps s.Version.
func (c *conn) UpdateShift(ctx context.Context, s *shift.Shift) error {
	err := affectedOne(c.q.ExecContext(ctx, `
		UPDATE shifts SET
			name = ?, assigned_to = ?, is_open = ?, date = ?, start_time = ?, end_time = ?,
			timezone = ?, role = ?, location = ?, status = ?, approval_status = ?,
			reviewed_by = ?, reviewed_at = ?, review_comment = ?,
			clock_in_time = ?, clock_out_time = ?, worked_hours = ?, notes = ?,
			reminder_sent = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		s.Name, s.AssignedTo, s.IsOpen, s.Date.String(), s.StartTime, s.EndTime,
		s.Timezone, s.Role, s.Location, s.Status, s.ApprovalStatus,
		s.Review.ReviewerID, nullTime(&s.Review.At), s.Review.Comment,
		nullTime(s.ClockInTime), nullTime(s.ClockOutTime), s.WorkedHours.String(), s.Notes,
		s.ReminderSent, formatTime(s.UpdatedAt),
		s.ID, s.Version,
	))
	if err != nil {
		return fmt.Errorf("failed to update shift %s: %w", s.ID, err)
	}
	s.Version++
	return nil
}

func (c *conn) DeleteShift(ctx context.Context, id string, version int) error {
	err := affectedOne(c.q.ExecContext(ctx, `DELETE FROM shifts WHERE id = ? AND version = ?`, id, version))
	if err != nil {
		return fmt.Errorf("failed to delete shift %s: %w", id, err)
	}
	return nil
}

// ListShifts returns shifts matching f ordered by date and start time.
func (c *conn) ListShifts(ctx context.Context, f shift.Filter) ([]shift.Shift, error) {
	var (
		where []string
		args  []any
	)
	if f.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	if f.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.ReminderPending {
		where = append(where, "reminder_sent = FALSE")
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, start_time, id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []shift.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *s)
	}
	return shifts, rows.Err()
}

// MarkReminderSent claims the reminder for a shift. Only the first caller
// sees true.
func (c *conn) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	res, err := c.q.ExecContext(ctx,
		`UPDATE shifts SET reminder_sent = TRUE, version = version + 1 WHERE id = ? AND reminder_sent = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanShift(row scanner) (*shift.Shift, error) {
	var (
		s                             shift.Shift
		date, status, approval        string
		reviewedAt, clockIn, clockOut sql.NullString
		workedHours                   string
		createdAt, updatedAt          string
	)
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.CreatedBy, &s.Name, &s.AssignedTo, &s.IsOpen, &date,
		&s.StartTime, &s.EndTime, &s.Timezone, &s.Role, &s.Location, &status, &approval,
		&s.Review.ReviewerID, &reviewedAt, &s.Review.Comment,
		&clockIn, &clockOut, &workedHours, &s.Notes, &s.ReminderSent, &s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = shift.Status(status)
	s.ApprovalStatus = shift.ApprovalStatus(approval)
	if s.Date, err = generic.ParseDate(date); err != nil {
		return nil, fmt.Errorf("shift %s: %w", s.ID, err)
	}
	if s.WorkedHours, err = decimal.NewFromString(workedHours); err != nil {
		return nil, fmt.Errorf("shift %s: bad worked hours %q: %w", s.ID, workedHours, err)
	}
	if s.ClockInTime, err = parseNullTime(clockIn); err != nil {
		return nil, err
	}
	if s.ClockOutTime, err = parseNullTime(clockOut); err != nil {
		return nil, err
	}
	at, err := parseNullTime(reviewedAt)
	if err != nil {
		return nil, err
	}
	if at != nil {
		s.Review.At = *at
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/timeoff"
)

// =============================================================================
// LEAVE BALANCES (timeoff.Store interface)
// =============================================================================

const balanceColumns = `staff_id, year, total_annual_leave, used_annual_leave, carry_over, version, created_at, updated_at`

func (c *conn) GetBalance(ctx context.Context, staffID string, year int) (*timeoff.Balance, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances WHERE staff_id = ? AND year = ?`, staffID, year)
	b, err := scanBalance(row)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "leave balance", ID: fmt.Sprintf("%s/%d", staffID, year)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

// CreateBalanceIfAbsent inserts b unless (staff, year) already has a row.
func (c *conn) CreateBalanceIfAbsent(ctx context.Context, b *timeoff.Balance) (bool, error) {
	if b.Version == 0 {
		b.Version = 1
	}
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_balances (`+balanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_id, year) DO NOTHING
	`,
		b.StaffID, b.Year,
		b.TotalAnnualLeave.Value.String(), b.UsedAnnualLeave.Value.String(), b.CarryOver.Value.String(),
		b.Version, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *conn) UpdateBalance(ctx context.Context, b *timeoff.Balance) error {
	err := affectedOne(c.q.ExecContext(ctx, `
		UPDATE leave_balances SET
			total_annual_leave = ?, used_annual_leave = ?, carry_over = ?,
			updated_at = ?, version = version + 1
		WHERE staff_id = ? AND year = ? AND version = ?
	`,
		b.TotalAnnualLeave.Value.String(), b.UsedAnnualLeave.Value.String(), b.CarryOver.Value.String(),
		formatTime(b.UpdatedAt),
		b.StaffID, b.Year, b.Version,
	))
	if err != nil {
		return fmt.Errorf("failed to update balance %s/%d: %w", b.StaffID, b.Year, err)
	}
	b.Version++
	return nil
}

// ListBalances returns the stored balances for staffIDs in year. Staff
// without a row are absent from the result.
func (c *conn) ListBalances(ctx context.Context, staffIDs []string, year int) ([]timeoff.Balance, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(staffIDs)+1)
	args = append(args, year)
	for _, id := range staffIDs {
		args = append(args, id)
	}
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+balanceColumns+` FROM leave_balances
		WHERE year = ? AND staff_id IN (`+placeholders(len(staffIDs))+`)
		ORDER BY staff_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []timeoff.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBalance(row scanner) (*timeoff.Balance, error) {
	var (
		b                      timeoff.Balance
		total, used, carryOver string
		createdAt, updatedAt   string
	)
	if err := row.Scan(&b.StaffID, &b.Year, &total, &used, &carryOver, &b.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.TotalAnnualLeave, err = parseDays(total); err != nil {
		return nil, err
	}
	if b.UsedAnnualLeave, err = parseDays(used); err != nil {
		return nil, err
	}
	if b.CarryOver, err = parseDays(carryOver); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func parseDays(s string) (generic.Amount, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("bad day amount %q: %w", s, err)
	}
	return generic.Amount{Value: v, Unit: generic.UnitDays}, nil
}

// =============================================================================
// LEAVE REQUESTS (timeoff.Store interface)
// =============================================================================

const requestColumns = `
	id, staff_id, organization_id, type, start_date, end_date, days_requested, reason,
	attachments_json, status, reviewed_by, reviewed_at, manager_comments,
	modified_start, modified_end, submitted_at, version`

func (c *conn) GetRequest(ctx context.Context, id string) (*timeoff.Request, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "leave request", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	return r, nil
}

func (c *conn) InsertRequest(ctx context.Context, r *timeoff.Request) error {
	if r.Version == 0 {
		r.Version = 1
	}
	attachments, err := marshalAttachments(r.Attachments)
	if err != nil {
		return err
	}
	modStart, modEnd := modifiedBounds(r.ModifiedDates)
	_, err = c.q.ExecContext(ctx, `INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (`+placeholders(17)+`)`,
		r.ID, r.StaffID, r.OrganizationID, r.Type, r.StartDate.String(), r.EndDate.String(),
		r.DaysRequested, r.Reason, attachments, r.Status,
		r.Review.ReviewerID, nullTime(&r.Review.At), r.Review.Comment,
		modStart, modEnd, formatTime(r.SubmittedAt), r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

func (c *conn) UpdateRequest(ctx context.Context, r *timeoff.Request) error {
	attachments, err := marshalAttachments(r.Attachments)
	if err != nil {
		return err
	}
	modStart, modEnd := modifiedBounds(r.ModifiedDates)
	err = affectedOne(c.q.ExecContext(ctx, `
		UPDATE leave_requests SET
			days_requested = ?, reason = ?, attachments_json = ?, status = ?,
			reviewed_by = ?, reviewed_at = ?, manager_comments = ?,
			modified_start = ?, modified_end = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		r.DaysRequested, r.Reason, attachments, r.Status,
		r.Review.ReviewerID, nullTime(&r.Review.At), r.Review.Comment,
		modStart, modEnd,
		r.ID, r.Version,
	))
	if err != nil {
		return fmt.Errorf("failed to update leave request %s: %w", r.ID, err)
	}
	r.Version++
	return nil
}

// ListRequests returns requests matching f, oldest submission first.
func (c *conn) ListRequests(ctx context.Context, f timeoff.RequestFilter) ([]timeoff.Request, error) {
	var (
		where []string
		args  []any
	)
	if len(f.StaffIDs) > 0 {
		where = append(where, "staff_id IN ("+placeholders(len(f.StaffIDs))+")")
		for _, id := range f.StaffIDs {
			args = append(args, id)
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Year != 0 {
		where = append(where, "start_date BETWEEN ? AND ?")
		args = append(args, generic.StartOfYear(f.Year).String(), generic.EndOfYear(f.Year).String())
	}
	return c.queryRequests(ctx, where, args)
}

// FindOverlapping compares against the original date range. Dates are
// stored as YYYY-MM-DD so string comparison is date comparison.
func (c *conn) FindOverlapping(ctx context.Context, staffID string, p generic.Period, statuses []timeoff.RequestStatus) ([]timeoff.Request, error) {
	where := []string{"staff_id = ?", "start_date <= ?", "end_date >= ?"}
	args := []any{staffID, p.End.String(), p.Start.String()}
	if len(statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(statuses))+")")
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	return c.queryRequests(ctx, where, args)
}

func (c *conn) queryRequests(ctx context.Context, where []string, args []any) ([]timeoff.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at, rowid`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var out []timeoff.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row scanner) (*timeoff.Request, error) {
	var (
		r                            timeoff.Request
		typ, status, start, end      string
		attachments, submittedAt     string
		reviewedAt, modStart, modEnd sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.StaffID, &r.OrganizationID, &typ, &start, &end, &r.DaysRequested, &r.Reason,
		&attachments, &status, &r.Review.ReviewerID, &reviewedAt, &r.Review.Comment,
		&modStart, &modEnd, &submittedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.Type = timeoff.LeaveType(typ)
	r.Status = timeoff.RequestStatus(status)
	if r.StartDate, err = generic.ParseDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = generic.ParseDate(end); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &r.Attachments); err != nil {
		return nil, fmt.Errorf("leave request %s: bad attachments: %w", r.ID, err)
	}
	at, err := parseNullTime(reviewedAt)
	if err != nil {
		return nil, err
	}
	if at != nil {
		r.Review.At = *at
	}
	if modStart.Valid && modEnd.Valid {
		p := generic.Period{}
		if p.Start, err = generic.ParseDate(modStart.String); err != nil {
			return nil, err
		}
		if p.End, err = generic.ParseDate(modEnd.String); err != nil {
			return nil, err
		}
		r.ModifiedDates = &p
	}
	if r.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func marshalAttachments(a []string) (string, error) {
	if a == nil {
		a = []string{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(b), nil
}

func modifiedBounds(p *generic.Period) (sql.NullString, sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return nullString(p.Start.String()), nullString(p.End.String())
}

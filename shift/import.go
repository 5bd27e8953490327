package shift

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
// BULK IMPORT - Rows from a spreadsheet become assigned shifts
// =============================================================================

const (
	DefaultImportRole     = "staff"
	DefaultImportLocation = "Main Location"
	defaultImportName     = "Scheduled Shift"
)

// ImportRow is one spreadsheet row, already converted to text.
// Date is YYYY-MM-DD, times are HH:MM.
type ImportRow struct {
	Name       string
	StaffEmail string
	Date       string
	StartTime  string
	EndTime    string
	Role       string
	Location   string
	Notes      string
}

// ImportError reports a rejected row. Row is the spreadsheet row number:
// the header is row 1, so the first data row is 2.
type ImportError struct {
	Row     int
	Message string
}

func (e ImportError) Error() string { return fmt.Sprintf("Row %d: %s", e.Row, e.Message) }

type ImportResult struct {
	Created []Shift
	Errors  []ImportError
}

// ImportShifts creates one assigned shift per valid row. Rows are validated
// independently; a bad row is reported and skipped, the rest still import.
// Each staff member receives a single notification covering all their new
// shifts.
func (e *Engine) ImportShifts(ctx context.Context, manager generic.Actor, rows []ImportRow, now time.Time) (*ImportResult, error) {
	if err := e.authorizeCreate(manager); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &generic.ValidationError{Field: "rows", Message: "no data found in spreadsheet"}
	}

	result := &ImportResult{}
	for i, row := range rows {
		rowNum := i + 2
		s, err := e.importRow(ctx, manager, row, now)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Message: importMessage(err)})
			continue
		}
		result.Created = append(result.Created, *s)
	}

	e.log.Info("shifts imported",
		zap.String("organization", manager.OrganizationID),
		zap.Int("created", len(result.Created)),
		zap.Int("rejected", len(result.Errors)),
	)
	e.notifyImported(ctx, result.Created)
	return result, nil
}

func (e *Engine) importRow(ctx context.Context, manager generic.Actor, row ImportRow, now time.Time) (*Shift, error) {
	email := strings.TrimSpace(row.StaffEmail)
	if email == "" || strings.TrimSpace(row.Date) == "" || strings.TrimSpace(row.StartTime) == "" || strings.TrimSpace(row.EndTime) == "" {
		return nil, &generic.ValidationError{Message: "Missing required fields"}
	}
	date, err := generic.ParseDate(strings.TrimSpace(row.Date))
	if err != nil {
		return nil, &generic.ValidationError{Field: "date", Message: err.Error()}
	}
	startTime, endTime := strings.TrimSpace(row.StartTime), strings.TrimSpace(row.EndTime)
	if err := validateSchedule(date, startTime, endTime, ""); err != nil {
		return nil, err
	}

	staff, err := e.directory.FindMemberByEmail(ctx, manager.OrganizationID, email)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, &generic.NotFoundError{Resource: "staff with email", ID: email}
		}
		return nil, err
	}
	if staff.Role != generic.RoleStaff {
		return nil, &generic.NotFoundError{Resource: "staff with email", ID: email}
	}

	s := &Shift{
		ID:             uuid.NewString(),
		OrganizationID: manager.OrganizationID,
		CreatedBy:      manager.ID,
		Name:           firstNonEmpty(row.Name, defaultImportName),
		AssignedTo:     staff.ID,
		Date:           date,
		StartTime:      startTime,
		EndTime:        endTime,
		Role:           firstNonEmpty(row.Role, DefaultImportRole),
		Location:       firstNonEmpty(row.Location, DefaultImportLocation),
		Notes:          strings.TrimSpace(row.Notes),
		Status:         StatusAssigned,
		ApprovalStatus: ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.insert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) notifyImported(ctx context.Context, created []Shift) {
	byStaff := make(map[string][]Shift)
	var order []string
	for _, s := range created {
		if _, seen := byStaff[s.AssignedTo]; !seen {
			order = append(order, s.AssignedTo)
		}
		byStaff[s.AssignedTo] = append(byStaff[s.AssignedTo], s)
	}

	for _, staffID := range order {
		shifts := byStaff[staffID]
		n := len(shifts)
		plural := ""
		if n > 1 {
			plural = "s"
		}
		dates := shifts[0].Date.String()
		if n > 1 {
			dates += " to " + shifts[n-1].Date.String()
		}
		e.notify(ctx, notify.Notification{
			RecipientID: staffID,
			Type:        notify.ShiftSchedule,
			Title:       fmt.Sprintf("%d New Shift%s Assigned", n, plural),
			Message:     fmt.Sprintf("You have %d new shift%s scheduled for %s", n, plural, dates),
			RelatedID:   shifts[0].ID,
		})
	}
}

func importMessage(err error) string {
	var nf *generic.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("Staff with email %s not found", nf.ID)
	}
	var ve *generic.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

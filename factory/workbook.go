/*
Package factory converts uploaded spreadsheets into shift import rows.

PURPOSE:
  Managers schedule a batch of shifts by uploading an .xlsx file. The
  factory reads the first worksheet, matches columns by header name and
  normalizes each cell to the text form shift.ImportShifts expects:
  dates as YYYY-MM-DD and times as HH:MM.

SHEET LAYOUT:
  Row 1 holds headers; every following row is one shift. Header matching
  ignores case, spaces, underscores and dashes, so "Staff Email",
  "staff_email" and "staffEmail" are the same column.

    | staffEmail | date       | startTime | endTime | role | location | notes | name |
    | a@acme.io  | 2025-06-01 | 09:00     | 17:00   |      |          |       |      |

  staffEmail, date, startTime and endTime are required headers. Empty
  cells are passed through; ImportShifts reports them per row.

CELL FORMATS:
  Dates may be ISO text, common US/long text formats, or Excel serial
  numbers. Times may be "HH:MM", "3:04 PM", or Excel day fractions.

USAGE:
  rows, err := factory.ParseShiftWorkbook(file)
  result, err := engine.ImportShifts(ctx, manager, rows, time.Now())

SEE ALSO:
  - shift/import.go: Row validation and shift creation
*/
package factory

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// COLUMNS
// =============================================================================

const (
	colStaffEmail = "staffemail"
	colDate       = "date"
	colStartTime  = "starttime"
	colEndTime    = "endtime"
	colRole       = "role"
	colLocation   = "location"
	colNotes      = "notes"
	colName       = "name"
)

var requiredColumns = []string{colStaffEmail, colDate, colStartTime, colEndTime}

var dateFormats = []string{
	generic.DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

var timeFormats = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"03:04 PM",
	"3:04:05 PM",
}

// =============================================================================
// PARSE
// =============================================================================

// ParseShiftWorkbook reads the first worksheet of an .xlsx document.
// Entirely blank rows are skipped.
func ParseShiftWorkbook(r io.Reader) ([]shift.ImportRow, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &generic.ValidationError{Field: "file", Message: "not a readable xlsx workbook: " + err.Error()}
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, &generic.ValidationError{Field: "file", Message: "no worksheet found"}
	}
	cells, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}
	if len(cells) < 2 {
		return nil, &generic.ValidationError{Field: "rows", Message: "no data found in spreadsheet"}
	}

	index := headerIndex(cells[0])
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &generic.ValidationError{Field: "header", Message: fmt.Sprintf("missing column %q", col)}
		}
	}

	var rows []shift.ImportRow
	for _, raw := range cells[1:] {
		if blank(raw) {
			continue
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(raw) {
				return ""
			}
			return strings.TrimSpace(raw[i])
		}
		rows = append(rows, shift.ImportRow{
			Name:       get(colName),
			StaffEmail: get(colStaffEmail),
			Date:       NormalizeDate(get(colDate)),
			StartTime:  NormalizeClock(get(colStartTime)),
			EndTime:    NormalizeClock(get(colEndTime)),
			Role:       get(colRole),
			Location:   get(colLocation),
			Notes:      get(colNotes),
		})
	}
	if len(rows) == 0 {
		return nil, &generic.ValidationError{Field: "rows", Message: "no data found in spreadsheet"}
	}
	return rows, nil
}

// =============================================================================
// CELL NORMALIZATION
// =============================================================================

// NormalizeDate returns value as YYYY-MM-DD when it is a recognizable date,
// and value unchanged otherwise so the importer can report it.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 1 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format(generic.DateLayout)
		}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(generic.DateLayout)
		}
	}
	return value
}

// NormalizeClock returns value as HH:MM when it is a recognizable time of
// day, and value unchanged otherwise.
func NormalizeClock(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f < 1 {
		minutes := int(math.Round(f * 24 * 60))
		return fmt.Sprintf("%02d:%02d", minutes/60%24, minutes%60)
	}
	upper := strings.ToUpper(value)
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.Format("15:04")
		}
	}
	return value
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; key != "" && !dup {
			index[key] = i
		}
	}
	return index
}

func normalizeHeader(h string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(h)))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

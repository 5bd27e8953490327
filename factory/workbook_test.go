package factory_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
	"github.com/xuri/excelize/v2"
)

// workbook builds an in-memory .xlsx with the given rows on its first sheet.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseShiftWorkbook(t *testing.T) {
	// GIVEN: A sheet with loosely named headers, a serial date and a 12-hour time
	// WHEN: It is parsed
	// THEN: Every row comes back normalized to YYYY-MM-DD and HH:MM

	buf := workbook(t,
		[]any{"Staff Email", "Date", "Start_Time", "end-time", "Role", "Location", "Notes"},
		[]any{"alice@acme.test", "2025-06-01", "09:00", "17:00", "cashier", "Annex", "bring keys"},
		[]any{"bob@acme.test", "45809", "9:30 am", "6:00 PM"},
		[]any{},
		[]any{"carol@acme.test", "6/3/2025", "", "17:00"},
	)

	rows, err := factory.ParseShiftWorkbook(buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, shift.ImportRow{
		StaffEmail: "alice@acme.test", Date: "2025-06-01", StartTime: "09:00", EndTime: "17:00",
		Role: "cashier", Location: "Annex", Notes: "bring keys",
	}, rows[0])
	assert.Equal(t, "2025-06-01", rows[1].Date)
	assert.Equal(t, "09:30", rows[1].StartTime)
	assert.Equal(t, "18:00", rows[1].EndTime)
	assert.Equal(t, "2025-06-03", rows[2].Date)
	assert.Empty(t, rows[2].StartTime, "empty cells are left for the importer to report")
}

func TestParseShiftWorkbook_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) *bytes.Buffer
	}{
		{"not a workbook", func(*testing.T) *bytes.Buffer { return bytes.NewBufferString("staffEmail,date\n") }},
		{"header only", func(t *testing.T) *bytes.Buffer {
			return workbook(t, []any{"staffEmail", "date", "startTime", "endTime"})
		}},
		{"missing required column", func(t *testing.T) *bytes.Buffer {
			return workbook(t, []any{"staffEmail", "date", "startTime"}, []any{"a@acme.test", "2025-06-01", "09:00"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseShiftWorkbook(tt.body(t))
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := map[string]string{
		"09:00":    "09:00",
		"9:05":     "09:05",
		"0.375":    "09:00",
		"0.75":     "18:00",
		"12:30 pm": "12:30",
		"12:15 AM": "00:15",
		"noon":     "noon",
		"":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, factory.NormalizeClock(in), "input %q", in)
	}
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2025-06-01", factory.NormalizeDate("45809"))
	assert.Equal(t, "2025-06-01", factory.NormalizeDate("June 1, 2025"))
	assert.Equal(t, "2025-06-01", factory.NormalizeDate("2025/06/01"))
	assert.Equal(t, "someday", factory.NormalizeDate("someday"))
}

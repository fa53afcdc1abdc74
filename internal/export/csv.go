package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

// TimestampLayout matches the spreadsheet-facing timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// Header is the column layout shared by CSV files and Sheets exports.
var Header = []string{
	"Worker Name", "Worker Email", "Position", "Hourly Rate",
	"Clock In", "Clock Out", "Break Start", "Break End",
	"Total Hours", "Overtime Hours", "Status", "Notes",
}

// Rows flattens time records into spreadsheet rows. Workers are resolved
// from the given map; records for unknown workers get empty identity cells
// rather than being dropped.
func Rows(records []model.TimeRecord, workers map[int64]model.Worker) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		w := workers[r.WorkerID]
		rows = append(rows, []string{
			w.Name,
			w.Email,
			w.Position,
			strconv.FormatFloat(w.HourlyRate, 'f', -1, 64),
			formatTime(&r.ClockIn),
			formatTime(r.ClockOut),
			formatTime(r.BreakStart),
			formatTime(r.BreakEnd),
			strconv.FormatFloat(r.TotalHours, 'f', -1, 64),
			strconv.FormatFloat(r.OvertimeHours, 'f', -1, 64),
			string(r.Status),
			r.Notes,
		})
	}
	return rows
}

// WriteCSV writes the header plus one row per record.
func WriteCSV(w io.Writer, records []model.TimeRecord, workers map[int64]model.Worker) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range Rows(records, workers) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportRow is one parsed line of an import file.
type ImportRow struct {
	WorkerName    string
	WorkerEmail   string
	Position      string
	HourlyRate    float64
	ClockIn       *time.Time
	ClockOut      *time.Time
	TotalHours    float64
	OvertimeHours float64
	Notes         string
}

// ReadCSV parses an import file laid out like Header. Column order is
// resolved from the header row, so partial files (e.g. workers only) are
// accepted. Rows without a worker email are reported as row errors rather
// than aborting the whole import.
func ReadCSV(r io.Reader) ([]ImportRow, []error, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["Worker Email"]; !ok {
		return nil, nil, fmt.Errorf("missing required column %q", "Worker Email")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var rows []ImportRow
	var rowErrs []error
	line := 1
	for {
		raw, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: %w", line, err))
			continue
		}

		email := field(raw, "Worker Email")
		if email == "" {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: missing worker email", line))
			continue
		}

		row := ImportRow{
			WorkerName:  field(raw, "Worker Name"),
			WorkerEmail: email,
			Position:    field(raw, "Position"),
			Notes:       field(raw, "Notes"),
		}
		if v := field(raw, "Hourly Rate"); v != "" {
			if row.HourlyRate, err = strconv.ParseFloat(v, 64); err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("row %d: hourly rate: %w", line, err))
				continue
			}
		}
		if row.ClockIn, err = parseTime(field(raw, "Clock In")); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: clock in: %w", line, err))
			continue
		}
		if row.ClockOut, err = parseTime(field(raw, "Clock Out")); err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: clock out: %w", line, err))
			continue
		}
		if v := field(raw, "Total Hours"); v != "" {
			if row.TotalHours, err = strconv.ParseFloat(v, 64); err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("row %d: total hours: %w", line, err))
				continue
			}
		}
		if v := field(raw, "Overtime Hours"); v != "" {
			if row.OvertimeHours, err = strconv.ParseFloat(v, 64); err != nil {
				rowErrs = append(rowErrs, fmt.Errorf("row %d: overtime hours: %w", line, err))
				continue
			}
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}

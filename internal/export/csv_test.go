package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(TimestampLayout, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v.UTC()
}

func tsp(t *testing.T, s string) *time.Time {
	t.Helper()
	v := ts(t, s)
	return &v
}

func TestWriteCSV(t *testing.T) {
	workers := map[int64]model.Worker{
		1: {ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Position: "Server", HourlyRate: 18.5},
	}
	records := []model.TimeRecord{
		{
			ID:            10,
			WorkerID:      1,
			ClockIn:       ts(t, "2026-03-02 08:00:00"),
			ClockOut:      tsp(t, "2026-03-02 17:00:00"),
			BreakStart:    tsp(t, "2026-03-02 12:00:00"),
			BreakEnd:      tsp(t, "2026-03-02 12:30:00"),
			TotalHours:    8.5,
			OvertimeHours: 0.5,
			Status:        model.RecordCompleted,
			Notes:         "opening shift",
		},
		{
			ID:       11,
			WorkerID: 1,
			ClockIn:  ts(t, "2026-03-03 08:00:00"),
			Status:   model.RecordActive,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, workers); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2)", len(rows))
	}
	if rows[0][0] != "Worker Name" || rows[0][11] != "Notes" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	got := rows[1]
	want := []string{
		"Ada Lovelace", "ada@example.com", "Server", "18.5",
		"2026-03-02 08:00:00", "2026-03-02 17:00:00",
		"2026-03-02 12:00:00", "2026-03-02 12:30:00",
		"8.5", "0.5", "completed", "opening shift",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col %d = %q, want %q", i, got[i], want[i])
		}
	}

	// Active record: empty clock-out and break cells.
	if rows[2][5] != "" || rows[2][6] != "" || rows[2][7] != "" {
		t.Errorf("active record has non-empty timestamps: %v", rows[2])
	}
	if rows[2][10] != "active" {
		t.Errorf("status = %q, want active", rows[2][10])
	}
}

func TestWriteCSVUnknownWorker(t *testing.T) {
	records := []model.TimeRecord{
		{ID: 1, WorkerID: 99, ClockIn: ts(t, "2026-03-02 08:00:00"), Status: model.RecordActive},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, nil); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if rows[1][0] != "" || rows[1][1] != "" {
		t.Errorf("unknown worker should yield empty identity cells, got %v", rows[1])
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	input := strings.Join([]string{
		"Worker Name,Worker Email,Position,Hourly Rate,Clock In,Clock Out,Break Start,Break End,Total Hours,Overtime Hours,Status,Notes",
		"Ada Lovelace,ada@example.com,Server,18.5,2026-03-02 08:00:00,2026-03-02 17:00:00,2026-03-02 12:00:00,2026-03-02 12:30:00,8.5,0.5,completed,opening shift",
		"Ben Kay,ben@example.com,Cook,20,2026-03-02 09:00:00,2026-03-02 13:00:00,,,4,0,completed,",
	}, "\n")

	rows, rowErrs, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	r := rows[0]
	if r.WorkerEmail != "ada@example.com" || r.WorkerName != "Ada Lovelace" {
		t.Errorf("identity = %q/%q", r.WorkerName, r.WorkerEmail)
	}
	if r.HourlyRate != 18.5 || r.TotalHours != 8.5 || r.OvertimeHours != 0.5 {
		t.Errorf("numbers = %v/%v/%v", r.HourlyRate, r.TotalHours, r.OvertimeHours)
	}
	if r.ClockIn == nil || !r.ClockIn.Equal(ts(t, "2026-03-02 08:00:00")) {
		t.Errorf("clock in = %v", r.ClockIn)
	}
	if r.ClockOut == nil || !r.ClockOut.Equal(ts(t, "2026-03-02 17:00:00")) {
		t.Errorf("clock out = %v", r.ClockOut)
	}
	if rows[1].ClockOut == nil || rows[1].ClockIn == nil {
		t.Error("second row timestamps missing")
	}
}

func TestReadCSVColumnSubset(t *testing.T) {
	input := strings.Join([]string{
		"Worker Name,Worker Email,Position",
		"Ada Lovelace,ada@example.com,Server",
	}, "\n")

	rows, rowErrs, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].ClockIn != nil {
		t.Errorf("clock in = %v, want nil for missing column", rows[0].ClockIn)
	}
}

func TestReadCSVBadRowsCollected(t *testing.T) {
	input := strings.Join([]string{
		"Worker Name,Worker Email,Hourly Rate,Clock In",
		"Ada,ada@example.com,18.5,2026-03-02 08:00:00",
		"NoEmail,,18.5,2026-03-02 08:00:00",
		"BadRate,bad@example.com,abc,2026-03-02 08:00:00",
		"BadTime,time@example.com,10,yesterday",
	}, "\n")

	rows, rowErrs, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1 good row", len(rows))
	}
	if len(rowErrs) != 3 {
		t.Errorf("row errors = %d, want 3: %v", len(rowErrs), rowErrs)
	}
}

func TestReadCSVMissingEmailColumn(t *testing.T) {
	input := "Worker Name,Position\nAda,Server\n"
	if _, _, err := ReadCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected error for file without a Worker Email column")
	}
}

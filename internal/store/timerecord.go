package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

// ErrDuplicate is returned when an insert or update hits a uniqueness
// constraint (duplicate worker email, second active record for a worker,
// overlapping shift).
var ErrDuplicate = errors.New("duplicate row")

type TimeRecordStore struct {
	db *sql.DB
}

func NewTimeRecordStore(db *sql.DB) *TimeRecordStore {
	return &TimeRecordStore{db: db}
}

const recordCols = `id, worker_id, shift_id, clock_in, clock_out, break_start, break_end, total_hours, overtime_hours, status, notes, created_at, updated_at`

func scanRecord(scanner interface{ Scan(...any) error }) (*model.TimeRecord, error) {
	var r model.TimeRecord
	var shiftID sql.NullInt64
	var clockOut, breakStart, breakEnd sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.WorkerID, &shiftID, &r.ClockIn, &clockOut,
		&breakStart, &breakEnd, &r.TotalHours, &r.OvertimeHours,
		&r.Status, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if shiftID.Valid {
		r.ShiftID = &shiftID.Int64
	}
	if clockOut.Valid {
		t := clockOut.Time
		r.ClockOut = &t
	}
	if breakStart.Valid {
		t := breakStart.Time
		r.BreakStart = &t
	}
	if breakEnd.Valid {
		t := breakEnd.Time
		r.BreakEnd = &t
	}
	return &r, nil
}

// InsertActive creates a new active record. The partial unique index on
// (worker_id) WHERE status='active' guarantees at most one active record
// per worker; a constraint hit comes back as ErrDuplicate.
func (s *TimeRecordStore) InsertActive(workerID int64, shiftID *int64, clockIn time.Time, notes string) (*model.TimeRecord, error) {
	var sID sql.NullInt64
	if shiftID != nil {
		sID = sql.NullInt64{Int64: *shiftID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO time_records (worker_id, shift_id, clock_in, status, notes) VALUES (?, ?, ?, 'active', ?)`,
		workerID, sID, clockIn.UTC(), notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert time record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// InsertCompleted writes a historical record directly in completed state.
// Used by imports, which carry their own clock-out and computed hours.
func (s *TimeRecordStore) InsertCompleted(workerID int64, clockIn time.Time, clockOut *time.Time, totalHours, overtimeHours float64, notes string) (*model.TimeRecord, error) {
	var out sql.NullTime
	if clockOut != nil {
		out = sql.NullTime{Time: clockOut.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO time_records (worker_id, clock_in, clock_out, total_hours, overtime_hours, status, notes)
		 VALUES (?, ?, ?, ?, ?, 'completed', ?)`,
		workerID, clockIn.UTC(), out, totalHours, overtimeHours, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completed record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// ExistsAt reports whether the worker already has a record clocking in at
// the exact instant. Imports use it to skip rows already loaded.
func (s *TimeRecordStore) ExistsAt(workerID int64, clockIn time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM time_records WHERE worker_id = ? AND clock_in = ?`,
		workerID, clockIn.UTC(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check record exists: %w", err)
	}
	return count > 0, nil
}

func (s *TimeRecordStore) GetByID(id int64) (*model.TimeRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordCols+` FROM time_records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time record: %w", err)
	}
	return r, nil
}

func (s *TimeRecordStore) ActiveByWorker(workerID int64) (*model.TimeRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+recordCols+` FROM time_records WHERE worker_id = ? AND status = 'active'`,
		workerID,
	)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active record for worker: %w", err)
	}
	return r, nil
}

func (s *TimeRecordStore) ListActive() ([]model.TimeRecord, error) {
	rows, err := s.db.Query(`SELECT ` + recordCols + ` FROM time_records WHERE status = 'active' ORDER BY clock_in ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// SetBreakStart stamps the break start. The WHERE clause re-checks the
// record state so a stale caller cannot overwrite an existing break.
func (s *TimeRecordStore) SetBreakStart(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE time_records SET break_start = ?, updated_at = ?
		 WHERE id = ? AND status = 'active' AND break_start IS NULL`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set break start: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *TimeRecordStore) SetBreakEnd(id int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE time_records SET break_end = ?, updated_at = ?
		 WHERE id = ? AND status = 'active' AND break_start IS NOT NULL AND break_end IS NULL`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set break end: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Complete finalizes a record: stamps clock_out, stores the computed hours,
// and flips status. Once completed the record never changes again; the
// WHERE clause makes the transition a no-op on anything but an active row.
func (s *TimeRecordStore) Complete(id int64, clockOut time.Time, totalHours, overtimeHours float64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE time_records SET clock_out = ?, total_hours = ?, overtime_hours = ?, status = 'completed', updated_at = ?
		 WHERE id = ? AND status = 'active'`,
		clockOut.UTC(), totalHours, overtimeHours, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete time record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListFilter narrows List. Nil fields are ignored.
type ListFilter struct {
	WorkerID *int64
	From     *time.Time // clock_in >= From
	To       *time.Time // clock_in < To
	Limit    int
	Offset   int
}

func (s *TimeRecordStore) List(f ListFilter) ([]model.TimeRecord, error) {
	query := `SELECT ` + recordCols + ` FROM time_records WHERE 1=1`
	var args []any

	if f.WorkerID != nil {
		query += ` AND worker_id = ?`
		args = append(args, *f.WorkerID)
	}
	if f.From != nil {
		query += ` AND clock_in >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND clock_in < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY clock_in DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *TimeRecordStore) CountActive() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM time_records WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active records: %w", err)
	}
	return count, nil
}

// SumHoursSince totals computed hours over records clocked in at or after
// the cutoff. Active records contribute zero, matching their stored values.
func (s *TimeRecordStore) SumHoursSince(cutoff time.Time) (total, overtime float64, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(total_hours), 0), COALESCE(SUM(overtime_hours), 0)
		 FROM time_records WHERE clock_in >= ?`,
		cutoff.UTC(),
	).Scan(&total, &overtime)
	if err != nil {
		return 0, 0, fmt.Errorf("sum hours: %w", err)
	}
	return total, overtime, nil
}

// WorkerTotalsSince aggregates a single worker's completed records clocked
// in at or after the cutoff.
func (s *TimeRecordStore) WorkerTotalsSince(workerID int64, cutoff time.Time) (total, overtime float64, completed int, err error) {
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(total_hours), 0), COALESCE(SUM(overtime_hours), 0), COUNT(*)
		 FROM time_records WHERE worker_id = ? AND status = 'completed' AND clock_in >= ?`,
		workerID, cutoff.UTC(),
	).Scan(&total, &overtime, &completed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("worker totals: %w", err)
	}
	return total, overtime, completed, nil
}

func collectRecords(rows *sql.Rows) ([]model.TimeRecord, error) {
	var records []model.TimeRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

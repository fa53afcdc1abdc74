package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

type ShiftStore struct {
	db *sql.DB
}

func NewShiftStore(db *sql.DB) *ShiftStore {
	return &ShiftStore{db: db}
}

const shiftCols = `id, worker_id, date, start_time, end_time, status, is_recurring, recurrence_pattern, notes, created_at, updated_at`

func scanShift(scanner interface{ Scan(...any) error }) (*model.Shift, error) {
	var sh model.Shift
	err := scanner.Scan(
		&sh.ID, &sh.WorkerID, &sh.Date, &sh.StartTime, &sh.EndTime,
		&sh.Status, &sh.IsRecurring, &sh.RecurrencePattern, &sh.Notes,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// Create inserts a shift. The partial unique index on (worker_id, date)
// WHERE status != 'cancelled' rejects a second non-cancelled shift for the
// same worker and date; that surfaces as ErrDuplicate.
func (s *ShiftStore) Create(sh model.Shift) (*model.Shift, error) {
	result, err := s.db.Exec(
		`INSERT INTO shifts (worker_id, date, start_time, end_time, status, is_recurring, recurrence_pattern, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.WorkerID, sh.Date, sh.StartTime.UTC(), sh.EndTime.UTC(),
		sh.Status, sh.IsRecurring, sh.RecurrencePattern, sh.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert shift: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ShiftStore) GetByID(id int64) (*model.Shift, error) {
	row := s.db.QueryRow(`SELECT `+shiftCols+` FROM shifts WHERE id = ?`, id)
	sh, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shift: %w", err)
	}
	return sh, nil
}

func (s *ShiftStore) Update(id int64, sh model.Shift) (*model.Shift, error) {
	_, err := s.db.Exec(
		`UPDATE shifts SET worker_id = ?, date = ?, start_time = ?, end_time = ?, status = ?, is_recurring = ?, recurrence_pattern = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		sh.WorkerID, sh.Date, sh.StartTime.UTC(), sh.EndTime.UTC(),
		sh.Status, sh.IsRecurring, sh.RecurrencePattern, sh.Notes,
		time.Now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update shift: %w", err)
	}
	return s.GetByID(id)
}

func (s *ShiftStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	return nil
}

// ShiftFilter narrows List. Empty fields are ignored. Dates are YYYY-MM-DD.
type ShiftFilter struct {
	WorkerID *int64
	DateFrom string
	DateTo   string
	Status   model.ShiftStatus
	Limit    int
	Offset   int
}

func (s *ShiftStore) List(f ShiftFilter) ([]model.Shift, error) {
	query := `SELECT ` + shiftCols + ` FROM shifts WHERE 1=1`
	var args []any

	if f.WorkerID != nil {
		query += ` AND worker_id = ?`
		args = append(args, *f.WorkerID)
	}
	if f.DateFrom != "" {
		query += ` AND date >= ?`
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += ` AND date <= ?`
		args = append(args, f.DateTo)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY date ASC, start_time ASC`
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
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		shifts = append(shifts, *sh)
	}
	return shifts, rows.Err()
}

func (s *ShiftStore) ListByDate(date string) ([]model.Shift, error) {
	return s.List(ShiftFilter{DateFrom: date, DateTo: date})
}

func (s *ShiftStore) CountByDate(date string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM shifts WHERE date = ?`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count shifts by date: %w", err)
	}
	return count, nil
}

// ListScheduledByWorker returns a worker's scheduled shifts, recurring ones
// included, for upcoming-occurrence expansion.
func (s *ShiftStore) ListScheduledByWorker(workerID int64) ([]model.Shift, error) {
	id := workerID
	return s.List(ShiftFilter{WorkerID: &id, Status: model.ShiftScheduled})
}

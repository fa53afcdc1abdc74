package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
)

type WorkerStore struct {
	db *sql.DB
}

func NewWorkerStore(db *sql.DB) *WorkerStore {
	return &WorkerStore{db: db}
}

const workerCols = `id, name, email, phone, position, hourly_rate, is_active, pin_hash, created_at, updated_at`

func scanWorker(scanner interface{ Scan(...any) error }) (*model.Worker, error) {
	var w model.Worker
	var pinHash string

	err := scanner.Scan(
		&w.ID, &w.Name, &w.Email, &w.Phone, &w.Position,
		&w.HourlyRate, &w.IsActive, &pinHash,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.HasPIN = pinHash != ""
	return &w, nil
}

func (s *WorkerStore) Create(name, email, phone, position string, hourlyRate float64) (*model.Worker, error) {
	result, err := s.db.Exec(
		`INSERT INTO workers (name, email, phone, position, hourly_rate) VALUES (?, ?, ?, ?, ?)`,
		name, email, phone, position, hourlyRate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert worker: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *WorkerStore) GetByID(id int64) (*model.Worker, error) {
	row := s.db.QueryRow(`SELECT `+workerCols+` FROM workers WHERE id = ?`, id)
	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

func (s *WorkerStore) List(includeInactive bool) ([]model.Worker, error) {
	query := `SELECT ` + workerCols + ` FROM workers`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

func (s *WorkerStore) GetByEmail(email string) (*model.Worker, error) {
	row := s.db.QueryRow(`SELECT `+workerCols+` FROM workers WHERE email = ?`, email)
	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get worker by email: %w", err)
	}
	return w, nil
}

// EmailExists reports whether another worker (active or not) already uses
// the email. excludeID skips the worker being updated.
func (s *WorkerStore) EmailExists(email string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM workers WHERE email = ? AND id != ?`,
		email, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

func (s *WorkerStore) Update(id int64, name, email, phone, position string, hourlyRate float64) (*model.Worker, error) {
	_, err := s.db.Exec(
		`UPDATE workers SET name = ?, email = ?, phone = ?, position = ?, hourly_rate = ?, updated_at = ? WHERE id = ?`,
		name, email, phone, position, hourlyRate, time.Now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update worker: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate soft-deletes a worker. The row, its shifts, and its time
// records all stay in place.
func (s *WorkerStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE workers SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate worker: %w", err)
	}
	return nil
}

func (s *WorkerStore) Counts() (total, active int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM workers`).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count workers: %w", err)
	}
	return total, active, nil
}

func (s *WorkerStore) SetPIN(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE workers SET pin_hash = ?, updated_at = ? WHERE id = ?`, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *WorkerStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(`UPDATE workers SET pin_hash = '', updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *WorkerStore) GetPINHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin_hash FROM workers WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

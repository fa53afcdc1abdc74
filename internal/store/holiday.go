package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/timeclock/internal/model"
)

type HolidayStore struct {
	db *sql.DB
}

func NewHolidayStore(db *sql.DB) *HolidayStore {
	return &HolidayStore{db: db}
}

const holidayCols = `id, name, date, is_recurring, created_at`

func scanHoliday(scanner interface{ Scan(...any) error }) (*model.Holiday, error) {
	var h model.Holiday
	err := scanner.Scan(&h.ID, &h.Name, &h.Date, &h.IsRecurring, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *HolidayStore) Create(name, date string, isRecurring bool) (*model.Holiday, error) {
	result, err := s.db.Exec(
		`INSERT INTO holidays (name, date, is_recurring) VALUES (?, ?, ?)`,
		name, date, isRecurring,
	)
	if err != nil {
		return nil, fmt.Errorf("insert holiday: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HolidayStore) GetByID(id int64) (*model.Holiday, error) {
	row := s.db.QueryRow(`SELECT `+holidayCols+` FROM holidays WHERE id = ?`, id)
	h, err := scanHoliday(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holiday: %w", err)
	}
	return h, nil
}

func (s *HolidayStore) List() ([]model.Holiday, error) {
	rows, err := s.db.Query(`SELECT ` + holidayCols + ` FROM holidays ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []model.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		holidays = append(holidays, *h)
	}
	return holidays, rows.Err()
}

func (s *HolidayStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return nil
}

package model

import "time"

type Worker struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Position   string    `json:"position"`
	HourlyRate float64   `json:"hourly_rate"`
	IsActive   bool      `json:"is_active"`
	HasPIN     bool      `json:"has_pin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WorkerStats aggregates a worker's time records over the trailing
// week and month.
type WorkerStats struct {
	WorkerID             int64   `json:"worker_id"`
	WorkerName           string  `json:"worker_name"`
	TotalHoursWeek       float64 `json:"total_hours_week"`
	TotalHoursMonth      float64 `json:"total_hours_month"`
	OvertimeHoursWeek    float64 `json:"overtime_hours_week"`
	OvertimeHoursMonth   float64 `json:"overtime_hours_month"`
	ShiftsCompletedWeek  int     `json:"shifts_completed_week"`
	ShiftsCompletedMonth int     `json:"shifts_completed_month"`
}

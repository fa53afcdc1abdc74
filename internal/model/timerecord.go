package model

import "time"

type RecordStatus string

const (
	RecordActive    RecordStatus = "active"
	RecordCompleted RecordStatus = "completed"
)

// TimeRecord is one clock-in/clock-out cycle for a worker. ClockOut,
// BreakStart, and BreakEnd are nil until the corresponding punch happens.
// TotalHours and OvertimeHours are computed once, at clock-out; they stay
// zero while the record is active.
type TimeRecord struct {
	ID            int64        `json:"id"`
	WorkerID      int64        `json:"worker_id"`
	ShiftID       *int64       `json:"shift_id"`
	ClockIn       time.Time    `json:"clock_in"`
	ClockOut      *time.Time   `json:"clock_out"`
	BreakStart    *time.Time   `json:"break_start"`
	BreakEnd      *time.Time   `json:"break_end"`
	TotalHours    float64      `json:"total_hours"`
	OvertimeHours float64      `json:"overtime_hours"`
	Status        RecordStatus `json:"status"`
	Notes         string       `json:"notes"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DashboardStats is the aggregate view for the kiosk dashboard.
type DashboardStats struct {
	TotalWorkers       int     `json:"total_workers"`
	ActiveWorkers      int     `json:"active_workers"`
	TotalShiftsToday   int     `json:"total_shifts_today"`
	WorkersClockedIn   int     `json:"workers_clocked_in"`
	TotalHoursToday    float64 `json:"total_hours_today"`
	OvertimeHoursToday float64 `json:"overtime_hours_today"`
}

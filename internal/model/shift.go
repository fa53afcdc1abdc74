package model

import "time"

// DateLayout is the calendar-date format used for shift and holiday dates.
const DateLayout = "2006-01-02"

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
)

type Shift struct {
	ID                int64       `json:"id"`
	WorkerID          int64       `json:"worker_id"`
	Date              string      `json:"date"` // YYYY-MM-DD
	StartTime         time.Time   `json:"start_time"`
	EndTime           time.Time   `json:"end_time"`
	Status            ShiftStatus `json:"status"`
	IsRecurring       bool        `json:"is_recurring"`
	RecurrencePattern string      `json:"recurrence_pattern"`
	Notes             string      `json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ShiftOccurrence is a concrete upcoming instance of a shift. For
// recurring shifts the date may differ from the stored anchor date.
type ShiftOccurrence struct {
	Shift
	OccursOn string `json:"occurs_on"` // YYYY-MM-DD
}

package model

import "time"

type Backup struct {
	ID         int64      `json:"id"`
	ObjectKey  string     `json:"object_key"`
	SizeBytes  int64      `json:"size_bytes"`
	State      string     `json:"state"` // running, completed, failed
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

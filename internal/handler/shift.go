package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/recurrence"
	"github.com/dukerupert/timeclock/internal/store"
	"github.com/dukerupert/timeclock/internal/websocket"
)

type ShiftHandler struct {
	shiftStore  *store.ShiftStore
	workerStore *store.WorkerStore
	hub         *websocket.Hub
}

func NewShiftHandler(ss *store.ShiftStore, ws *store.WorkerStore, hub *websocket.Hub) *ShiftHandler {
	return &ShiftHandler{shiftStore: ss, workerStore: ws, hub: hub}
}

func (h *ShiftHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type shiftRequest struct {
	WorkerID          int64             `json:"worker_id"`
	Date              string            `json:"date"` // YYYY-MM-DD
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	Status            model.ShiftStatus `json:"status"`
	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern string            `json:"recurrence_pattern"`
	Notes             string            `json:"notes"`
}

func (r *shiftRequest) validate() string {
	if r.WorkerID <= 0 {
		return "worker_id is required"
	}
	if _, err := time.Parse(model.DateLayout, r.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return "start_time and end_time are required"
	}
	if !r.EndTime.After(r.StartTime) {
		return "end_time must be after start_time"
	}
	if r.Status == "" {
		r.Status = model.ShiftScheduled
	}
	switch r.Status {
	case model.ShiftScheduled, model.ShiftCompleted, model.ShiftCancelled:
	default:
		return "invalid status"
	}
	if r.IsRecurring {
		if _, err := recurrence.Parse(r.RecurrencePattern); err != nil {
			return "recurrence_pattern must be daily, weekly, biweekly, or monthly"
		}
	}
	return ""
}

func (r *shiftRequest) toModel() model.Shift {
	pattern := r.RecurrencePattern
	if !r.IsRecurring {
		pattern = ""
	}
	return model.Shift{
		WorkerID:          r.WorkerID,
		Date:              r.Date,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Status:            r.Status,
		IsRecurring:       r.IsRecurring,
		RecurrencePattern: pattern,
		Notes:             r.Notes,
	}
}

func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	worker, err := h.workerStore.GetByID(req.WorkerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check worker"})
		return
	}
	if worker == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker not found"})
		return
	}

	shift, err := h.shiftStore.Create(req.toModel())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "worker already has a shift on this date"})
			return
		}
		slog.Error("create shift", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create shift"})
		return
	}

	h.broadcast(websocket.NewMessage("shift", "created", shift.ID, shift.WorkerID))

	writeJSON(w, http.StatusCreated, shift)
}

// List returns shifts filtered by optional worker_id, date_from, date_to,
// and status query parameters.
func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ShiftFilter{
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		Status:   model.ShiftStatus(q.Get("status")),
	}
	if v := q.Get("worker_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid worker_id"})
			return
		}
		filter.WorkerID = &id
	}

	shifts, err := h.shiftStore.List(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list shifts"})
		return
	}
	if shifts == nil {
		shifts = []model.Shift{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (h *ShiftHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	shift, err := h.shiftStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get shift"})
		return
	}
	if shift == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.shiftStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get shift"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
		return
	}

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	shift, err := h.shiftStore.Update(id, req.toModel())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "worker already has a shift on this date"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update shift"})
		return
	}

	h.broadcast(websocket.NewMessage("shift", "updated", id, shift.WorkerID))

	writeJSON(w, http.StatusOK, shift)
}

func (h *ShiftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.shiftStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get shift"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "shift not found"})
		return
	}

	if err := h.shiftStore.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete shift"})
		return
	}

	h.broadcast(websocket.NewMessage("shift", "deleted", id, existing.WorkerID))

	w.WriteHeader(http.StatusNoContent)
}

// Today returns today's shifts.
func (h *ShiftHandler) Today(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Format(model.DateLayout)

	shifts, err := h.shiftStore.ListByDate(today)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list shifts"})
		return
	}
	if shifts == nil {
		shifts = []model.Shift{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

// Upcoming expands a worker's scheduled shifts, recurring ones included,
// into concrete occurrences over the next N days (default 14).
func (h *ShiftHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	worker, err := h.workerStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get worker"})
		return
	}
	if worker == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker not found"})
		return
	}

	days := 14
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 90"})
			return
		}
		days = n
	}

	shifts, err := h.shiftStore.ListScheduledByWorker(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list shifts"})
		return
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, days)

	occurrences := expandOccurrences(shifts, from, to)
	writeJSON(w, http.StatusOK, occurrences)
}

func expandOccurrences(shifts []model.Shift, from, to time.Time) []model.ShiftOccurrence {
	occurrences := []model.ShiftOccurrence{}
	for _, sh := range shifts {
		anchor, err := time.Parse(model.DateLayout, sh.Date)
		if err != nil {
			continue
		}

		if !sh.IsRecurring {
			if !anchor.Before(from) && anchor.Before(to) {
				occurrences = append(occurrences, model.ShiftOccurrence{Shift: sh, OccursOn: sh.Date})
			}
			continue
		}

		pattern, err := recurrence.Parse(sh.RecurrencePattern)
		if err != nil {
			continue
		}
		for _, day := range recurrence.Expand(pattern, anchor, from, to, 0) {
			occurrences = append(occurrences, model.ShiftOccurrence{
				Shift:    sh,
				OccursOn: day.Format(model.DateLayout),
			})
		}
	}

	sort.Slice(occurrences, func(i, j int) bool {
		if occurrences[i].OccursOn != occurrences[j].OccursOn {
			return occurrences[i].OccursOn < occurrences[j].OccursOn
		}
		return occurrences[i].StartTime.Before(occurrences[j].StartTime)
	})
	return occurrences
}

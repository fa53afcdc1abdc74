package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/store"
	"github.com/dukerupert/timeclock/internal/timeclock"
	"github.com/dukerupert/timeclock/internal/websocket"
)

type TrackingHandler struct {
	engine      *timeclock.Engine
	workerStore *store.WorkerStore
	recordStore *store.TimeRecordStore
	shiftStore  *store.ShiftStore
	hub         *websocket.Hub
}

func NewTrackingHandler(engine *timeclock.Engine, ws *store.WorkerStore, rs *store.TimeRecordStore, ss *store.ShiftStore, hub *websocket.Hub) *TrackingHandler {
	return &TrackingHandler{
		engine:      engine,
		workerStore: ws,
		recordStore: rs,
		shiftStore:  ss,
		hub:         hub,
	}
}

func (h *TrackingHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// writeEngineError maps engine failures onto HTTP statuses: missing
// worker or record is 404, a state that already blocks the punch is 409,
// any other disallowed transition is 400.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeclock.ErrWorkerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker not found"})
	case errors.Is(err, timeclock.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "time record not found"})
	case errors.Is(err, timeclock.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, timeclock.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("time tracking", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *TrackingHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID int64  `json:"worker_id"`
		ShiftID  *int64 `json:"shift_id"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.WorkerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "worker_id is required"})
		return
	}

	rec, err := h.engine.ClockIn(req.WorkerID, req.ShiftID, req.Notes)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("time_record", "clocked_in", rec.ID, rec.WorkerID))

	writeJSON(w, http.StatusCreated, rec)
}

func (h *TrackingHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	rec, err := h.engine.ClockOut(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("time_record", "clocked_out", rec.ID, rec.WorkerID))

	writeJSON(w, http.StatusOK, rec)
}

func (h *TrackingHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	rec, err := h.engine.StartBreak(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("time_record", "break_started", rec.ID, rec.WorkerID))

	writeJSON(w, http.StatusOK, rec)
}

func (h *TrackingHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	rec, err := h.engine.EndBreak(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("time_record", "break_ended", rec.ID, rec.WorkerID))

	writeJSON(w, http.StatusOK, rec)
}

// ListActive returns every currently clocked-in record.
func (h *TrackingHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.AllActiveRecords()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list active records"})
		return
	}
	if records == nil {
		records = []model.TimeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// WorkerActive returns the worker's active record, or 404 when the worker
// is clocked out.
func (h *TrackingHandler) WorkerActive(w http.ResponseWriter, r *http.Request) {
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

	rec, err := h.engine.ActiveRecordFor(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get active record"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker is not clocked in"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRecords returns time records, newest first, filtered by optional
// worker_id, from, to (RFC 3339), limit, and offset query parameters.
func (h *TrackingHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{Limit: 100}

	if v := q.Get("worker_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid worker_id"})
			return
		}
		filter.WorkerID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from timestamp"})
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to timestamp"})
			return
		}
		filter.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	records, err := h.recordStore.List(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list records"})
		return
	}
	if records == nil {
		records = []model.TimeRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Dashboard aggregates the kiosk overview: head counts, today's shifts,
// and today's hour totals.
func (h *TrackingHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	total, active, err := h.workerStore.Counts()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count workers"})
		return
	}
	shiftsToday, err := h.shiftStore.CountByDate(now.Format(model.DateLayout))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count shifts"})
		return
	}
	clockedIn, err := h.recordStore.CountActive()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count active records"})
		return
	}
	hours, overtime, err := h.recordStore.SumHoursSince(midnight)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sum hours"})
		return
	}

	writeJSON(w, http.StatusOK, model.DashboardStats{
		TotalWorkers:       total,
		ActiveWorkers:      active,
		TotalShiftsToday:   shiftsToday,
		WorkersClockedIn:   clockedIn,
		TotalHoursToday:    hours,
		OvertimeHoursToday: overtime,
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/store"
	"github.com/dukerupert/timeclock/internal/websocket"
)

type WorkerHandler struct {
	workerStore *store.WorkerStore
	recordStore *store.TimeRecordStore
	hub         *websocket.Hub
}

func NewWorkerHandler(ws *store.WorkerStore, rs *store.TimeRecordStore, hub *websocket.Hub) *WorkerHandler {
	return &WorkerHandler{workerStore: ws, recordStore: rs, hub: hub}
}

func (h *WorkerHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type workerRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Position   string  `json:"position"`
	HourlyRate float64 `json:"hourly_rate"`
}

func (r *workerRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Name == "" {
		return "name is required"
	}
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return "a valid email is required"
	}
	if r.HourlyRate < 0 {
		return "hourly rate cannot be negative"
	}
	return ""
}

func (h *WorkerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	worker, err := h.workerStore.Create(req.Name, req.Email, req.Phone, req.Position, req.HourlyRate)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a worker with this email already exists"})
			return
		}
		slog.Error("create worker", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create worker"})
		return
	}

	h.broadcast(websocket.NewMessage("worker", "created", worker.ID, worker.ID))

	writeJSON(w, http.StatusCreated, worker)
}

func (h *WorkerHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	workers, err := h.workerStore.List(includeInactive)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list workers"})
		return
	}
	if workers == nil {
		workers = []model.Worker{}
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *WorkerHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, worker)
}

func (h *WorkerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.workerStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get worker"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker not found"})
		return
	}

	var req workerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	worker, err := h.workerStore.Update(id, req.Name, req.Email, req.Phone, req.Position, req.HourlyRate)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a worker with this email already exists"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update worker"})
		return
	}

	h.broadcast(websocket.NewMessage("worker", "updated", id, id))

	writeJSON(w, http.StatusOK, worker)
}

// Deactivate soft-deletes. Shifts and time records for the worker are kept.
func (h *WorkerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.workerStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get worker"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "worker not found"})
		return
	}

	if err := h.workerStore.Deactivate(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to deactivate worker"})
		return
	}

	h.broadcast(websocket.NewMessage("worker", "deactivated", id, id))

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns hour and overtime totals for the trailing week and month.
func (h *WorkerHandler) Stats(w http.ResponseWriter, r *http.Request) {
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

	now := time.Now().UTC()
	weekTotal, weekOT, weekCount, err := h.recordStore.WorkerTotalsSince(id, now.AddDate(0, 0, -7))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}
	monthTotal, monthOT, monthCount, err := h.recordStore.WorkerTotalsSince(id, now.AddDate(0, -1, 0))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}

	writeJSON(w, http.StatusOK, model.WorkerStats{
		WorkerID:             id,
		WorkerName:           worker.Name,
		TotalHoursWeek:       weekTotal,
		TotalHoursMonth:      monthTotal,
		OvertimeHoursWeek:    weekOT,
		OvertimeHoursMonth:   monthOT,
		ShiftsCompletedWeek:  weekCount,
		ShiftsCompletedMonth: monthCount,
	})
}

func (h *WorkerHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash PIN"})
		return
	}

	if err := h.workerStore.SetPIN(id, string(hash)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkerHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.workerStore.ClearPIN(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkerHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.workerStore.GetPINHash(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get PIN"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no PIN set for this worker"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/store"
)

type HolidayHandler struct {
	holidayStore *store.HolidayStore
}

func NewHolidayHandler(hs *store.HolidayStore) *HolidayHandler {
	return &HolidayHandler{holidayStore: hs}
}

func (h *HolidayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Date        string `json:"date"` // YYYY-MM-DD
		IsRecurring bool   `json:"is_recurring"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	holiday, err := h.holidayStore.Create(req.Name, req.Date, req.IsRecurring)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create holiday"})
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (h *HolidayHandler) List(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.holidayStore.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list holidays"})
		return
	}
	if holidays == nil {
		holidays = []model.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

func (h *HolidayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.holidayStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get holiday"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "holiday not found"})
		return
	}

	if err := h.holidayStore.Delete(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete holiday"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

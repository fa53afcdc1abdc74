package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/timeclock/internal/export"
	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/sheets"
	"github.com/dukerupert/timeclock/internal/store"
)

type ExportHandler struct {
	recordStore   *store.TimeRecordStore
	workerStore   *store.WorkerStore
	settingsStore *store.SettingsStore
	sheetsClient  *sheets.Client
}

func NewExportHandler(rs *store.TimeRecordStore, ws *store.WorkerStore, ss *store.SettingsStore, sc *sheets.Client) *ExportHandler {
	return &ExportHandler{
		recordStore:   rs,
		workerStore:   ws,
		settingsStore: ss,
		sheetsClient:  sc,
	}
}

// exportData gathers the records matching the query filter plus a worker
// lookup map for row building.
func (h *ExportHandler) exportData(r *http.Request) ([]model.TimeRecord, map[int64]model.Worker, error) {
	q := r.URL.Query()
	var filter store.ListFilter

	if v := q.Get("worker_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid worker_id")
		}
		filter.WorkerID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid from date, want YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid to date, want YYYY-MM-DD")
		}
		end := t.AddDate(0, 0, 1) // inclusive end date
		filter.To = &end
	}

	records, err := h.recordStore.List(filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list records")
	}

	workers, err := h.workerStore.List(true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workers")
	}
	byID := make(map[int64]model.Worker, len(workers))
	for _, w := range workers {
		byID[w.ID] = w
	}
	return records, byID, nil
}

// CSV streams the filtered time records as a CSV attachment.
func (h *ExportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	records, workers, err := h.exportData(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("time-records-%s.csv", time.Now().UTC().Format(model.DateLayout))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteCSV(w, records, workers); err != nil {
		slog.Error("csv export", "error", err)
	}
}

// Sheets pushes the filtered time records to Google Sheets. The
// destination spreadsheet id is persisted in settings so repeated exports
// replace the same sheet.
func (h *ExportHandler) Sheets(w http.ResponseWriter, r *http.Request) {
	if !h.sheetsClient.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sheets export is not configured"})
		return
	}

	records, workers, err := h.exportData(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	settings, err := h.settingsStore.GetSheetsSettings()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load sheets settings"})
		return
	}
	spreadsheetID := settings["sheets_spreadsheet_id"]
	sheetName := settings["sheets_sheet_name"]

	title := fmt.Sprintf("Timeclock Export %s", time.Now().UTC().Format(model.DateLayout))
	result, err := h.sheetsClient.Export(r.Context(), spreadsheetID, sheetName, title,
		export.Header, export.Rows(records, workers))
	if err != nil {
		if errors.Is(err, sheets.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sheets export is not configured"})
			return
		}
		slog.Error("sheets export", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "sheets export failed"})
		return
	}

	// Remember a freshly created spreadsheet for the next export.
	if spreadsheetID == "" && result.SpreadsheetID != "" {
		if err := h.settingsStore.Set("sheets_spreadsheet_id", result.SpreadsheetID); err != nil {
			slog.Warn("persist spreadsheet id", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	WorkersCreated  int      `json:"workers_created"`
	RecordsImported int      `json:"records_imported"`
	RecordsSkipped  int      `json:"records_skipped"`
	Errors          []string `json:"errors,omitempty"`
}

// ImportCSV loads workers and completed time records from an uploaded CSV
// laid out like the export format. Workers are matched by email and
// created when missing; records already present (same worker and clock-in)
// are skipped.
func (h *ExportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a CSV file upload named 'file' is required"})
		return
	}
	defer file.Close()

	rows, rowErrs, err := export.ReadCSV(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := ImportResult{}
	for _, re := range rowErrs {
		result.Errors = append(result.Errors, re.Error())
	}

	for _, row := range rows {
		worker, err := h.workerStore.GetByEmail(row.WorkerEmail)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: lookup failed", row.WorkerEmail))
			continue
		}
		if worker == nil {
			name := row.WorkerName
			if name == "" {
				name = row.WorkerEmail
			}
			worker, err = h.workerStore.Create(name, row.WorkerEmail, "", row.Position, row.HourlyRate)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: create failed", row.WorkerEmail))
				continue
			}
			result.WorkersCreated++
		}

		if row.ClockIn == nil {
			continue // worker-only row
		}

		exists, err := h.recordStore.ExistsAt(worker.ID, *row.ClockIn)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: duplicate check failed", row.WorkerEmail))
			continue
		}
		if exists {
			result.RecordsSkipped++
			continue
		}

		if _, err := h.recordStore.InsertCompleted(worker.ID, *row.ClockIn, row.ClockOut,
			row.TotalHours, row.OvertimeHours, row.Notes); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: insert failed", row.WorkerEmail))
			continue
		}
		result.RecordsImported++
	}

	writeJSON(w, http.StatusOK, result)
}

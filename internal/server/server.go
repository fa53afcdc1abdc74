package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/timeclock/internal/backup"
	"github.com/dukerupert/timeclock/internal/handler"
	"github.com/dukerupert/timeclock/internal/middleware"
	"github.com/dukerupert/timeclock/internal/push"
	"github.com/dukerupert/timeclock/internal/sheets"
	"github.com/dukerupert/timeclock/internal/store"
	"github.com/dukerupert/timeclock/internal/timeclock"
	ws "github.com/dukerupert/timeclock/internal/websocket"
)

// Config carries the external service credentials the server wires up.
type Config struct {
	DBPath            string
	SheetsAccessToken string
	VAPIDPublicKey    string
	VAPIDPrivateKey   string
	Backup            backup.Config
}

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	workerH   *handler.WorkerHandler
	trackingH *handler.TrackingHandler
	shiftH    *handler.ShiftHandler
	holidayH  *handler.HolidayHandler
	exportH   *handler.ExportHandler
	pushH     *handler.PushHandler
	backupH   *handler.BackupHandler

	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushService   *push.Service
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	workerStore := store.NewWorkerStore(db)
	recordStore := store.NewTimeRecordStore(db)
	shiftStore := store.NewShiftStore(db)
	holidayStore := store.NewHolidayStore(db)
	settingsStore := store.NewSettingsStore(db)
	backupStore := store.NewBackupStore(db)
	pushStore := store.NewPushStore(db)

	engine := timeclock.NewEngine(workerStore, recordStore)
	sheetsClient := sheets.NewClient(cfg.SheetsAccessToken)

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, logger, func(st backup.Status) {
		hub.Broadcast(ws.Message{
			Type:    "backup_status",
			Entity:  "backup",
			Action:  string(st.State),
			Payload: st,
		})
	})

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	var pushSched *push.Scheduler
	if pushSvc.Configured() {
		pushSched = push.NewScheduler(pushSvc, pushStore, recordStore, shiftStore, workerStore, logger)
	}

	return &Server{
		db:            db,
		hub:           hub,
		workerH:       handler.NewWorkerHandler(workerStore, recordStore, hub),
		trackingH:     handler.NewTrackingHandler(engine, workerStore, recordStore, shiftStore, hub),
		shiftH:        handler.NewShiftHandler(shiftStore, workerStore, hub),
		holidayH:      handler.NewHolidayHandler(holidayStore),
		exportH:       handler.NewExportHandler(recordStore, workerStore, settingsStore, sheetsClient),
		pushH:         handler.NewPushHandler(pushStore, pushSvc),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// BackupManager returns the backup manager for lifecycle control.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push scheduler, nil when VAPID keys are not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Punch endpoints are what kiosks hammer; rate limit them per client.
	mux.HandleFunc("POST /api/tracking/clock-in", s.rateLimitedHandler(s.trackingH.ClockIn))
	mux.HandleFunc("PUT /api/tracking/clock-out/{id}", s.rateLimitedHandler(s.trackingH.ClockOut))
	mux.HandleFunc("PUT /api/tracking/break-start/{id}", s.rateLimitedHandler(s.trackingH.StartBreak))
	mux.HandleFunc("PUT /api/tracking/break-end/{id}", s.rateLimitedHandler(s.trackingH.EndBreak))
	mux.HandleFunc("GET /api/tracking/active", s.trackingH.ListActive)
	mux.HandleFunc("GET /api/tracking/workers/{id}/active", s.trackingH.WorkerActive)
	mux.HandleFunc("GET /api/tracking/records", s.trackingH.ListRecords)

	mux.HandleFunc("GET /api/dashboard", s.trackingH.Dashboard)

	// Worker API routes
	mux.HandleFunc("POST /api/workers", s.workerH.Create)
	mux.HandleFunc("GET /api/workers", s.workerH.List)
	mux.HandleFunc("GET /api/workers/{id}", s.workerH.Get)
	mux.HandleFunc("PUT /api/workers/{id}", s.workerH.Update)
	mux.HandleFunc("DELETE /api/workers/{id}", s.workerH.Deactivate)
	mux.HandleFunc("GET /api/workers/{id}/stats", s.workerH.Stats)

	// PIN routes
	mux.HandleFunc("POST /api/workers/{id}/pin", s.workerH.SetPIN)
	mux.HandleFunc("DELETE /api/workers/{id}/pin", s.workerH.ClearPIN)
	mux.HandleFunc("POST /api/workers/{id}/pin/verify", s.rateLimitedHandler(s.workerH.VerifyPIN))

	// Shift API routes
	mux.HandleFunc("POST /api/shifts", s.shiftH.Create)
	mux.HandleFunc("GET /api/shifts", s.shiftH.List)
	mux.HandleFunc("GET /api/shifts/today", s.shiftH.Today)
	mux.HandleFunc("GET /api/shifts/{id}", s.shiftH.Get)
	mux.HandleFunc("PUT /api/shifts/{id}", s.shiftH.Update)
	mux.HandleFunc("DELETE /api/shifts/{id}", s.shiftH.Delete)
	mux.HandleFunc("GET /api/workers/{id}/shifts/upcoming", s.shiftH.Upcoming)

	// Holiday API routes
	mux.HandleFunc("POST /api/holidays", s.holidayH.Create)
	mux.HandleFunc("GET /api/holidays", s.holidayH.List)
	mux.HandleFunc("DELETE /api/holidays/{id}", s.holidayH.Delete)

	// Export and import
	mux.HandleFunc("GET /api/export/csv", s.exportH.CSV)
	mux.HandleFunc("POST /api/export/sheets", s.exportH.Sheets)
	mux.HandleFunc("POST /api/import/csv", s.exportH.ImportCSV)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Backup API routes
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backups/run", s.backupH.RunNow)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "error": "database unreachable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

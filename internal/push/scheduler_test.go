package push

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/timeclock/internal/database"
	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/store"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (f *fakeSender) Send(_ *model.PushSubscription, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSender) sent() []Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Payload(nil), f.payloads...)
}

func setupScheduler(t *testing.T) (*Scheduler, *fakeSender, *store.WorkerStore, *store.TimeRecordStore, *store.ShiftStore, *store.PushStore) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	workers := store.NewWorkerStore(db)
	records := store.NewTimeRecordStore(db)
	shifts := store.NewShiftStore(db)
	subs := store.NewPushStore(db)

	sender := &fakeSender{}
	s := &Scheduler{
		service:  sender,
		push:     subs,
		records:  records,
		shifts:   shifts,
		workers:  workers,
		logger:   slog.Default(),
		interval: time.Minute,
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
	return s, sender, workers, records, shifts, subs
}

func TestLongShiftNudgeSentOnce(t *testing.T) {
	s, sender, workers, records, _, subs := setupScheduler(t)

	w, err := workers.Create("Ada Lovelace", "ada@example.com", "", "Server", 18.5)
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	if _, err := subs.Upsert("https://push.example/abc", "p256dh", "auth", "kiosk"); err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	clockIn := time.Now().UTC().Add(-13 * time.Hour)
	if _, err := records.InsertActive(w.ID, nil, clockIn, ""); err != nil {
		t.Fatalf("insert active: %v", err)
	}

	s.checkLongShifts()
	s.checkLongShifts()

	sent := sender.sent()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1 (deduped)", len(sent))
	}
	if sent[0].Title != "Still clocked in" {
		t.Errorf("title = %q", sent[0].Title)
	}
}

func TestShortShiftNoNudge(t *testing.T) {
	s, sender, workers, records, _, subs := setupScheduler(t)

	w, _ := workers.Create("Ben Kay", "ben@example.com", "", "Cook", 20)
	subs.Upsert("https://push.example/abc", "p256dh", "auth", "kiosk")
	records.InsertActive(w.ID, nil, time.Now().UTC().Add(-2*time.Hour), "")

	s.checkLongShifts()

	if got := len(sender.sent()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
}

func TestUpcomingShiftReminder(t *testing.T) {
	s, sender, workers, _, shifts, subs := setupScheduler(t)

	// Pin the clock to a known instant.
	now := time.Date(2026, 3, 2, 8, 45, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	w, _ := workers.Create("Ada Lovelace", "ada@example.com", "", "Server", 18.5)
	subs.Upsert("https://push.example/abc", "p256dh", "auth", "kiosk")

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if _, err := shifts.Create(model.Shift{
		WorkerID:  w.ID,
		Date:      "2026-03-02",
		StartTime: start,
		EndTime:   start.Add(8 * time.Hour),
		Status:    model.ShiftScheduled,
	}); err != nil {
		t.Fatalf("create shift: %v", err)
	}

	s.checkUpcomingShifts()
	s.checkUpcomingShifts()

	sent := sender.sent()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sent))
	}
	if sent[0].Title != "Shift starting soon" {
		t.Errorf("title = %q", sent[0].Title)
	}
}

func TestReminderSkipsDistantShift(t *testing.T) {
	s, sender, workers, _, shifts, subs := setupScheduler(t)

	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	w, _ := workers.Create("Ben Kay", "ben@example.com", "", "Cook", 20)
	subs.Upsert("https://push.example/abc", "p256dh", "auth", "kiosk")

	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	shifts.Create(model.Shift{
		WorkerID:  w.ID,
		Date:      "2026-03-02",
		StartTime: start,
		EndTime:   start.Add(6 * time.Hour),
		Status:    model.ShiftScheduled,
	})

	s.checkUpcomingShifts()

	if got := len(sender.sent()); got != 0 {
		t.Errorf("notifications = %d, want 0 for a shift 8 hours out", got)
	}
}

func TestOccursOnRecurringShift(t *testing.T) {
	s, _, _, _, _, _ := setupScheduler(t)

	sh := model.Shift{
		Date:              "2026-03-02", // a Monday
		IsRecurring:       true,
		RecurrencePattern: "weekly",
	}

	if !s.occursOn(sh, "2026-03-02") {
		t.Error("anchor date should occur")
	}
	if !s.occursOn(sh, "2026-03-09") {
		t.Error("one week after anchor should occur")
	}
	if s.occursOn(sh, "2026-03-10") {
		t.Error("tuesday should not occur for a weekly monday shift")
	}

	oneOff := model.Shift{Date: "2026-03-02"}
	if s.occursOn(oneOff, "2026-03-09") {
		t.Error("non-recurring shift should only occur on its date")
	}
}

func TestExpiredSubscriptionRemoved(t *testing.T) {
	s, sender, workers, records, _, subs := setupScheduler(t)

	sender.err = ErrExpired

	w, _ := workers.Create("Ada Lovelace", "ada@example.com", "", "Server", 18.5)
	subs.Upsert("https://push.example/stale", "p256dh", "auth", "old phone")
	records.InsertActive(w.ID, nil, time.Now().UTC().Add(-13*time.Hour), "")

	s.checkLongShifts()

	remaining, err := subs.List()
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("subscriptions = %d, want expired one removed", len(remaining))
	}
}

func TestPruneSent(t *testing.T) {
	s, _, _, _, _, _ := setupScheduler(t)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.sent["old"] = now.Add(-72 * time.Hour)
	s.sent["fresh"] = now.Add(-1 * time.Hour)

	s.pruneSent()

	if _, ok := s.sent["old"]; ok {
		t.Error("old entry not pruned")
	}
	if _, ok := s.sent["fresh"]; !ok {
		t.Error("fresh entry pruned")
	}
}

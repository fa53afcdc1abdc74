package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/recurrence"
	"github.com/dukerupert/timeclock/internal/store"
)

// sender abstracts Service.Send for tests.
type sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

const (
	// longShiftAfter is how long a record may stay active before the
	// "still clocked in" nudge fires.
	longShiftAfter = 12 * time.Hour

	// shiftReminderLead is how far ahead of a scheduled shift the
	// reminder fires.
	shiftReminderLead = 30 * time.Minute
)

// Scheduler periodically checks for notifications to send: workers left
// clocked in past a long-shift threshold, and shifts about to start.
type Scheduler struct {
	mu       sync.RWMutex
	service  sender
	push     *store.PushStore
	records  *store.TimeRecordStore
	shifts   *store.ShiftStore
	workers  *store.WorkerStore
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	sent map[string]time.Time // notification tag -> when sent

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a notification scheduler.
func NewScheduler(svc *Service, pushStore *store.PushStore, recordStore *store.TimeRecordStore, shiftStore *store.ShiftStore, workerStore *store.WorkerStore, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		records:  recordStore,
		shifts:   shiftStore,
		workers:  workerStore,
		logger:   logger.With("component", "push"),
		interval: 60 * time.Second,
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	s.checkLongShifts()
	s.checkUpcomingShifts()
	s.pruneSent()
}

// checkLongShifts nudges when a worker has been clocked in past the
// long-shift threshold, usually because they forgot to clock out.
func (s *Scheduler) checkLongShifts() {
	now := s.now().UTC()

	active, err := s.records.ListActive()
	if err != nil {
		s.logger.Error("list active records", "error", err)
		return
	}

	for _, rec := range active {
		if now.Sub(rec.ClockIn) < longShiftAfter {
			continue
		}

		tag := fmt.Sprintf("long-shift-%d", rec.ID)
		if s.alreadySent(tag) {
			continue
		}

		name := s.workerName(rec.WorkerID)
		s.broadcast(Payload{
			Title: "Still clocked in",
			Body:  fmt.Sprintf("%s has been clocked in for over %d hours", name, int(longShiftAfter.Hours())),
			URL:   "/dashboard",
			Tag:   tag,
		})
		s.markSent(tag)
	}
}

// checkUpcomingShifts reminds shortly before a scheduled shift starts.
// Recurring shifts are expanded to today's occurrence.
func (s *Scheduler) checkUpcomingShifts() {
	now := s.now().UTC()
	today := now.Format(model.DateLayout)

	shifts, err := s.shifts.List(store.ShiftFilter{Status: model.ShiftScheduled})
	if err != nil {
		s.logger.Error("list scheduled shifts", "error", err)
		return
	}

	for _, sh := range shifts {
		if !s.occursOn(sh, today) {
			continue
		}

		start := time.Date(now.Year(), now.Month(), now.Day(),
			sh.StartTime.UTC().Hour(), sh.StartTime.UTC().Minute(), 0, 0, time.UTC)
		until := start.Sub(now)
		if until <= 0 || until > shiftReminderLead {
			continue
		}

		tag := fmt.Sprintf("shift-reminder-%d-%s", sh.ID, today)
		if s.alreadySent(tag) {
			continue
		}

		name := s.workerName(sh.WorkerID)
		s.broadcast(Payload{
			Title: "Shift starting soon",
			Body:  fmt.Sprintf("%s's shift starts at %s", name, start.Format("15:04")),
			URL:   "/schedule",
			Tag:   tag,
		})
		s.markSent(tag)
	}
}

// occursOn reports whether the shift lands on the given date, expanding
// its recurrence pattern when needed.
func (s *Scheduler) occursOn(sh model.Shift, date string) bool {
	if sh.Date == date {
		return true
	}
	if !sh.IsRecurring {
		return false
	}

	pattern, err := recurrence.Parse(sh.RecurrencePattern)
	if err != nil {
		return false
	}
	anchor, err := time.Parse(model.DateLayout, sh.Date)
	if err != nil {
		return false
	}
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return false
	}

	occurrences := recurrence.Expand(pattern, anchor, day, day.AddDate(0, 0, 1), 1)
	return len(occurrences) == 1 && occurrences[0].Format(model.DateLayout) == date
}

func (s *Scheduler) workerName(workerID int64) string {
	w, err := s.workers.GetByID(workerID)
	if err != nil || w == nil {
		return fmt.Sprintf("Worker %d", workerID)
	}
	return w.Name
}

func (s *Scheduler) broadcast(payload Payload) {
	subs, err := s.push.List()
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.Delete(sub.ID)
			} else {
				s.logger.Warn("send notification", "tag", payload.Tag, "error", err)
			}
		}
	}
}

func (s *Scheduler) alreadySent(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sent[tag]
	return ok
}

func (s *Scheduler) markSent(tag string) {
	s.mu.Lock()
	s.sent[tag] = s.now().UTC()
	s.mu.Unlock()
}

// pruneSent drops dedupe entries older than two days so the map stays
// bounded.
func (s *Scheduler) pruneSent() {
	cutoff := s.now().UTC().Add(-48 * time.Hour)
	s.mu.Lock()
	for tag, at := range s.sent {
		if at.Before(cutoff) {
			delete(s.sent, tag)
		}
	}
	s.mu.Unlock()
}

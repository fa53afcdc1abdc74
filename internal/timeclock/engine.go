package timeclock

import (
	"errors"
	"time"

	"github.com/dukerupert/timeclock/internal/model"
	"github.com/dukerupert/timeclock/internal/store"
)

// StandardShiftHours is the threshold beyond which worked time counts as
// overtime.
const StandardShiftHours = 8.0

var (
	// ErrWorkerNotFound means the referenced worker does not exist.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrRecordNotFound means the referenced time record does not exist.
	ErrRecordNotFound = errors.New("time record not found")
	// ErrConflict means an exclusivity or already-set-field violation:
	// clocking in while a record is active, starting a second break.
	ErrConflict = errors.New("conflicting time record state")
	// ErrInvalidState means the operation is not allowed from the record's
	// current state, e.g. clocking out a completed record.
	ErrInvalidState = errors.New("invalid time record state")
)

// Engine owns the lifecycle of a worker's time record: clock-in,
// break-start, break-end, clock-out. Operations against one worker
// serialize on a per-worker lock, and the store's partial unique index
// backs the at-most-one-active-record invariant even across processes.
type Engine struct {
	workers *store.WorkerStore
	records *store.TimeRecordStore
	locks   workerLocks
	now     func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(workers *store.WorkerStore, records *store.TimeRecordStore, opts ...Option) *Engine {
	e := &Engine{
		workers: workers,
		records: records,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ClockIn creates a new active record for the worker. It fails with
// ErrWorkerNotFound if the worker is unknown and ErrConflict if the worker
// already has an active record. It never closes the existing record on the
// caller's behalf.
func (e *Engine) ClockIn(workerID int64, shiftID *int64, notes string) (*model.TimeRecord, error) {
	unlock := e.locks.lock(workerID)
	defer unlock()

	worker, err := e.workers.GetByID(workerID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, ErrWorkerNotFound
	}

	active, err := e.records.ActiveByWorker(workerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrConflict
	}

	rec, err := e.records.InsertActive(workerID, shiftID, e.now(), notes)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race with a writer outside this process.
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// StartBreak stamps break_start on an active record. At most one break per
// record: a second start fails with ErrConflict.
func (e *Engine) StartBreak(recordID int64) (*model.TimeRecord, error) {
	rec, unlock, err := e.lockRecord(recordID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.Status != model.RecordActive {
		return nil, ErrInvalidState
	}
	if rec.BreakStart != nil {
		return nil, ErrConflict
	}

	ok, err := e.records.SetBreakStart(recordID, e.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return e.records.GetByID(recordID)
}

// EndBreak stamps break_end. It requires a started, not yet ended break.
func (e *Engine) EndBreak(recordID int64) (*model.TimeRecord, error) {
	rec, unlock, err := e.lockRecord(recordID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.Status != model.RecordActive {
		return nil, ErrInvalidState
	}
	if rec.BreakStart == nil {
		return nil, ErrInvalidState
	}
	if rec.BreakEnd != nil {
		return nil, ErrConflict
	}

	ok, err := e.records.SetBreakEnd(recordID, e.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return e.records.GetByID(recordID)
}

// ClockOut finalizes an active record: stamps clock_out, computes total and
// overtime hours, and marks it completed. The transition is irreversible.
// A clock-out timestamp earlier than clock-in (clock skew, bad input) is
// rejected rather than stored as a negative duration.
func (e *Engine) ClockOut(recordID int64) (*model.TimeRecord, error) {
	rec, unlock, err := e.lockRecord(recordID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if rec.Status != model.RecordActive {
		return nil, ErrInvalidState
	}

	clockOut := e.now()
	if clockOut.Before(rec.ClockIn) {
		return nil, ErrInvalidState
	}

	total, overtime := computeHours(rec.ClockIn, clockOut, rec.BreakStart, rec.BreakEnd)

	ok, err := e.records.Complete(recordID, clockOut, total, overtime)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	return e.records.GetByID(recordID)
}

// ActiveRecordFor returns the worker's active record, or nil when the
// worker is clocked out.
func (e *Engine) ActiveRecordFor(workerID int64) (*model.TimeRecord, error) {
	return e.records.ActiveByWorker(workerID)
}

// AllActiveRecords returns every record currently in the active state, one
// per clocked-in worker.
func (e *Engine) AllActiveRecords() ([]model.TimeRecord, error) {
	return e.records.ListActive()
}

// lockRecord resolves the record, takes its worker's lock, and re-reads the
// record so the caller validates against state that cannot change under it.
func (e *Engine) lockRecord(recordID int64) (*model.TimeRecord, func(), error) {
	rec, err := e.records.GetByID(recordID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrRecordNotFound
	}

	unlock := e.locks.lock(rec.WorkerID)

	rec, err = e.records.GetByID(recordID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	if rec == nil {
		unlock()
		return nil, nil, ErrRecordNotFound
	}
	return rec, unlock, nil
}

// computeHours implements the duration policy: elapsed time minus the break
// when both break timestamps are present. A started but never ended break
// does not reduce elapsed time. Hours are fractional and unrounded.
func computeHours(clockIn, clockOut time.Time, breakStart, breakEnd *time.Time) (total, overtime float64) {
	elapsed := clockOut.Sub(clockIn)
	if breakStart != nil && breakEnd != nil {
		elapsed -= breakEnd.Sub(*breakStart)
	}

	total = elapsed.Hours()
	if total > StandardShiftHours {
		overtime = total - StandardShiftHours
	}
	return total, overtime
}

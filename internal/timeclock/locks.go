package timeclock

import "sync"

// workerLocks hands out one mutex per worker so that the read-check-write
// sequences in the engine serialize per worker without any cross-worker
// coordination. Mutexes are never released; the worker population is small
// and bounded.
type workerLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (w *workerLocks) lock(workerID int64) (unlock func()) {
	w.mu.Lock()
	if w.locks == nil {
		w.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := w.locks[workerID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[workerID] = l
	}
	w.mu.Unlock()

	l.Lock()
	return l.Unlock
}

package store

import (
	"sync"
	"time"
)

// Timer kinds. Save Status clears are keyed per status key so one record's
// flash never cancels another's.
const (
	timerInsert   = "insert"
	timerDebounce = "debounce"
)

func savedTimer(key string) string { return "saved:" + key }

// scheduler keeps at most one pending task per kind. Scheduling a kind stops
// whatever was pending for it.
type scheduler struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]*task
}

type task struct {
	seq   uint64
	timer *time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{pending: make(map[string]*task)}
}

func (sc *scheduler) schedule(kind string, d time.Duration, fn func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if prev, ok := sc.pending[kind]; ok {
		prev.timer.Stop()
	}
	sc.seq++
	seq := sc.seq
	sc.pending[kind] = &task{
		seq:   seq,
		timer: time.AfterFunc(d, func() { sc.fire(kind, seq, fn) }),
	}
}

// fire runs fn only if the task is still the current one for its kind; a
// timer that was already firing when it got replaced is ignored.
func (sc *scheduler) fire(kind string, seq uint64, fn func()) {
	sc.mu.Lock()
	cur, ok := sc.pending[kind]
	if !ok || cur.seq != seq {
		sc.mu.Unlock()
		return
	}
	delete(sc.pending, kind)
	sc.mu.Unlock()
	fn()
}

func (sc *scheduler) isPending(kind string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.pending[kind]
	return ok
}

func (sc *scheduler) stopAll() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for kind, t := range sc.pending {
		t.timer.Stop()
		delete(sc.pending, kind)
	}
}

// Package queue batches file change events with debouncing and coalescing
// before they reach the orchestrator.
package queue

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Change types.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change is one file event.
type Change struct {
	Path       string
	ChangeType string
	ProjectID  string
}

// key identifies the coalescing slot for an event.
func (c Change) key() string {
	return c.ProjectID + "|" + c.Path
}

// Handler processes one flushed batch. A false return signals the consumer
// is busy; the queue re-enqueues the batch instead of interleaving.
type Handler func(batch []Change) bool

// Options tune the queue.
type Options struct {
	BatchIntervalMs int
	MaxBatchSize    int
}

// Queue coalesces events per (path, project) and flushes on either the
// batch interval or the size threshold, whichever trips first.
type Queue struct {
	mu       sync.Mutex
	pending  map[string]Change
	order    []string
	timer    *time.Timer
	paused   bool
	interval time.Duration
	maxSize  int
	handler  Handler
	logger   *logrus.Logger
	dropped  int
}

// New creates a queue delivering batches to handler.
func New(opts Options, handler Handler, logger *logrus.Logger) *Queue {
	if opts.BatchIntervalMs <= 0 {
		opts.BatchIntervalMs = 1000
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 100
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Queue{
		pending:  make(map[string]Change),
		interval: time.Duration(opts.BatchIntervalMs) * time.Millisecond,
		maxSize:  opts.MaxBatchSize,
		handler:  handler,
		logger:   logger,
	}
}

// Offer adds an event. While paused, events are dropped outright so that
// host-mediated edits never trigger a second ingestion path.
func (q *Queue) Offer(c Change) {
	q.mu.Lock()

	if q.paused {
		q.dropped++
		q.mu.Unlock()
		return
	}

	// Coalesce: the latest event for a (path, project) slot wins, which
	// also makes a trailing deletion dominate the earlier created/updated.
	k := c.key()
	if _, ok := q.pending[k]; !ok {
		q.order = append(q.order, k)
	}
	q.pending[k] = c

	if len(q.pending) >= q.maxSize {
		batch := q.drainLocked()
		q.mu.Unlock()
		q.deliver(batch)
		return
	}

	if q.timer == nil {
		q.timer = time.AfterFunc(q.interval, q.flushOnTimer)
	}
	q.mu.Unlock()
}

func (q *Queue) flushOnTimer() {
	q.mu.Lock()
	batch := q.drainLocked()
	q.mu.Unlock()
	q.deliver(batch)
}

// FlushNow drains synchronously.
func (q *Queue) FlushNow() {
	q.mu.Lock()
	batch := q.drainLocked()
	q.mu.Unlock()
	q.deliver(batch)
}

// drainLocked empties the pending set preserving arrival order.
func (q *Queue) drainLocked() []Change {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if len(q.pending) == 0 {
		return nil
	}
	batch := make([]Change, 0, len(q.pending))
	for _, k := range q.order {
		if c, ok := q.pending[k]; ok {
			batch = append(batch, c)
		}
	}
	q.pending = make(map[string]Change)
	q.order = nil
	return batch
}

// deliver hands the batch to the handler; a busy consumer gets the batch
// re-enqueued rather than interleaved.
func (q *Queue) deliver(batch []Change) {
	if len(batch) == 0 {
		return
	}
	if q.handler(batch) {
		return
	}

	q.logger.WithField("size", len(batch)).Debug("consumer busy, re-enqueueing batch")
	q.mu.Lock()
	for _, c := range batch {
		k := c.key()
		if _, ok := q.pending[k]; ok {
			// A newer event arrived while the batch was out; it wins.
			continue
		}
		q.pending[k] = c
		q.order = append(q.order, k)
	}
	if q.timer == nil && len(q.pending) > 0 {
		q.timer = time.AfterFunc(q.interval, q.flushOnTimer)
	}
	q.mu.Unlock()
}

// Pause drops subsequent events until Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume re-enables event intake.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
}

// WithPause runs fn with the queue paused; events observed meanwhile are
// dropped, not deferred.
func (q *Queue) WithPause(fn func()) {
	q.Pause()
	defer q.Resume()
	fn()
}

// Pending reports the current pending count, for diagnostics.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped reports how many events were discarded while paused.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	batches [][]Change
	busy    bool
}

func (c *collector) handle(batch []Change) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.batches = append(c.batches, batch)
	return true
}

func (c *collector) all() [][]Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]Change, len(c.batches))
	copy(out, c.batches)
	return out
}

func newQueue(c *collector, opts Options) *Queue {
	return New(opts, c.handle, nil)
}

func TestCoalesceLatestWins(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 60_000})

	q.Offer(Change{Path: "/p/a.ts", ChangeType: ChangeCreated, ProjectID: "p1"})
	q.Offer(Change{Path: "/p/a.ts", ChangeType: ChangeUpdated, ProjectID: "p1"})
	q.FlushNow()

	batches := c.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, ChangeUpdated, batches[0][0].ChangeType)
}

func TestCreatedThenDeletedCollapsesToDeleted(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 60_000})

	q.Offer(Change{Path: "/p/f.ts", ChangeType: ChangeCreated, ProjectID: "p1"})
	q.Offer(Change{Path: "/p/f.ts", ChangeType: ChangeDeleted, ProjectID: "p1"})
	q.FlushNow()

	batches := c.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, ChangeDeleted, batches[0][0].ChangeType)
}

func TestDistinctProjectsDoNotCoalesce(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 60_000})

	q.Offer(Change{Path: "/shared/x.ts", ChangeType: ChangeUpdated, ProjectID: "p1"})
	q.Offer(Change{Path: "/shared/x.ts", ChangeType: ChangeUpdated, ProjectID: "p2"})
	q.FlushNow()

	batches := c.all()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestFlushOnMaxBatchSize(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 60_000, MaxBatchSize: 3})

	q.Offer(Change{Path: "/p/1.ts", ChangeType: ChangeUpdated})
	q.Offer(Change{Path: "/p/2.ts", ChangeType: ChangeUpdated})
	assert.Empty(t, c.all())
	q.Offer(Change{Path: "/p/3.ts", ChangeType: ChangeUpdated})

	batches := c.all()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, 0, q.Pending())
}

func TestFlushOnInterval(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 20})

	q.Offer(Change{Path: "/p/slow.ts", ChangeType: ChangeUpdated})
	require.Eventually(t, func() bool { return len(c.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPausedEventsAreDropped(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{BatchIntervalMs: 60_000})

	q.WithPause(func() {
		q.Offer(Change{Path: "/p/edit.ts", ChangeType: ChangeUpdated})
		q.Offer(Change{Path: "/p/edit2.ts", ChangeType: ChangeUpdated})
	})
	q.FlushNow()

	assert.Empty(t, c.all(), "paused events must be dropped, not deferred")
	assert.Equal(t, 2, q.Dropped())

	// Intake works again after resume.
	q.Offer(Change{Path: "/p/after.ts", ChangeType: ChangeUpdated})
	q.FlushNow()
	assert.Len(t, c.all(), 1)
}

func TestBusyConsumerGetsBatchReenqueued(t *testing.T) {
	c := &collector{busy: true}
	q := newQueue(c, Options{BatchIntervalMs: 60_000})

	q.Offer(Change{Path: "/p/busy.ts", ChangeType: ChangeUpdated})
	q.FlushNow()

	assert.Empty(t, c.all())
	assert.Equal(t, 1, q.Pending(), "batch must be re-enqueued, not lost")

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	q.FlushNow()

	batches := c.all()
	require.Len(t, batches, 1)
	assert.Equal(t, "/p/busy.ts", batches[0][0].Path)
}

func TestFlushNowEmptyIsNoop(t *testing.T) {
	c := &collector{}
	q := newQueue(c, Options{})
	q.FlushNow()
	assert.Empty(t, c.all())
}

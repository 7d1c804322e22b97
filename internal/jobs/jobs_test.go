package jobs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a controllable clock for TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	return NewStore(ttl, clock.Now), clock
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)

	id := store.Create()
	require.NotEmpty(t, id)

	job, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Zero(t, job.Progress)

	store.SetProgress(id, 20, "주석 매핑 중...")
	store.Complete(id, "/tmp/out.xlsx")

	job, ok = store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "/tmp/out.xlsx", job.ReportPath)
}

func TestJobFail(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)
	id := store.Create()
	store.Fail(id, "DSD 파싱 실패")

	job, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "DSD 파싱 실패", job.Error)
}

func TestProgressNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)
	id := store.Create()

	store.SetProgress(id, 55, "")
	store.SetProgress(id, 40, "늦게 도착한 보고") // concurrent completion arriving late
	store.SetProgress(id, 60, "")

	job, _ := store.Get(id)
	assert.Equal(t, 60, job.Progress)
	assert.Equal(t, "늦게 도착한 보고", job.Message)
}

func TestSweepEvictsExpiredJobs(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(30 * time.Minute)

	old := store.Create()
	clock.Advance(31 * time.Minute)
	fresh := store.Create()

	removed := store.Sweep()
	assert.Equal(t, 1, removed)

	_, ok := store.Get(old)
	assert.False(t, ok)
	_, ok = store.Get(fresh)
	assert.True(t, ok)
}

func TestSweepKeepsRecentlyUpdatedJobs(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(30 * time.Minute)
	id := store.Create()

	// Activity resets the expiry clock.
	clock.Advance(29 * time.Minute)
	store.SetProgress(id, 50, "진행 중")
	clock.Advance(29 * time.Minute)

	assert.Zero(t, store.Sweep())
	_, ok := store.Get(id)
	assert.True(t, ok)
}

func TestLogRingBounded(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)
	id := store.Create()

	for i := 0; i < 250; i++ {
		store.AppendLog(id, fmt.Sprintf("line %d", i))
	}

	job, _ := store.Get(id)
	require.Len(t, job.Logs, 200)
	assert.Equal(t, "line 50", job.Logs[0])
	assert.Equal(t, "line 249", job.Logs[199])
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)
	id := store.Create()
	store.AppendLog(id, "one")

	job, _ := store.Get(id)
	job.Logs[0] = "mutated"
	job.Progress = 99

	again, _ := store.Get(id)
	assert.Equal(t, "one", again.Logs[0])
	assert.Zero(t, again.Progress)
}

func TestUnknownJobIsNoop(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(time.Hour)
	store.SetProgress("missing", 50, "x")
	store.Complete("missing", "y")
	store.Fail("missing", "z")
	store.AppendLog("missing", "w")

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

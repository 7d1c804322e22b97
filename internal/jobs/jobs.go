// Package jobs tracks asynchronous reconciliation runs in memory. Jobs
// are addressed by UUID, expire on a TTL after their last update, and
// keep a bounded tail of log lines for the status endpoint.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// maxLogLines bounds the per-job log tail.
const maxLogLines = 200

// Job is a snapshot of one reconciliation run.
type Job struct {
	ID         string    `json:"job_id"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	ReportPath string    `json:"-"`
	Error      string    `json:"error,omitempty"`
	Logs       []string  `json:"logs,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store holds jobs keyed by ID. The clock is injected so expiry is
// testable without sleeping.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	now  func() time.Time
}

// NewStore builds a store with the given expiry TTL. A nil clock uses
// time.Now.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		now:  now,
	}
}

// Create registers a new processing job and returns its ID.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	t := s.now()
	s.jobs[id] = &Job{
		ID:        id,
		Status:    StatusProcessing,
		CreatedAt: t,
		UpdatedAt: t,
	}
	return id
}

// Get returns a copy of the job; the bool reports existence.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	out := *j
	out.Logs = append([]string(nil), j.Logs...)
	return out, true
}

// SetProgress advances the percentage and status message. Progress never
// moves backwards; concurrent note completions may report out of order.
func (s *Store) SetProgress(id string, pct int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if pct > j.Progress {
		j.Progress = pct
	}
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = s.now()
}

// AppendLog adds one line to the job's bounded log tail.
func (s *Store) AppendLog(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.Logs = append(j.Logs, line)
	if len(j.Logs) > maxLogLines {
		j.Logs = j.Logs[len(j.Logs)-maxLogLines:]
	}
	j.UpdatedAt = s.now()
}

// Complete marks the job done and records the rendered report location.
func (s *Store) Complete(id, reportPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.ReportPath = reportPath
	j.UpdatedAt = s.now()
}

// Fail marks the job failed with the given error message.
func (s *Store) Fail(id, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.Status = StatusFailed
	j.Error = errMsg
	j.UpdatedAt = s.now()
}

// Sweep drops every job whose last update is older than the TTL and
// returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, j := range s.jobs {
		if j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the given interval until the context ends.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				zap.L().Info("jobs: expired jobs removed", zap.Int("count", n))
			}
		}
	}
}

package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/readerview/pkg/models"
)

// JobStatus represents the current state of an extraction job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job has reached a terminal state
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRequest identifies the work a job performs
type JobRequest struct {
	URL       string               `json:"url"`
	Extractor models.ExtractorKind `json:"extractor,omitempty"`
	WebView   bool                 `json:"webview,omitempty"`
}

func (r JobRequest) key() string {
	mode := "direct"
	if r.WebView {
		mode = "rendered"
	}
	return r.Extractor.String() + "|" + mode + "|" + r.URL
}

// Job represents a background fetch-and-extract run
type Job struct {
	ID           string                           `json:"id"`
	Request      JobRequest                       `json:"request"`
	Status       JobStatus                        `json:"status"`
	StartedAt    time.Time                        `json:"started_at"`
	CompletedAt  time.Time                        `json:"completed_at,omitempty"`
	ErrorMessage string                           `json:"error_message,omitempty"`
	Result       *models.FetchAndExtractionResult `json:"-"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager manages background extraction jobs. Finished jobs are kept
// until Cleanup removes them.
type JobManager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	byKey map[string]string // request key -> jobID for unfinished jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
	}
}

// CreateJob registers a job for req. An unfinished job for the same request
// is returned instead of a new one; created reports which happened.
func (m *JobManager) CreateJob(req JobRequest) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[req.key()]; ok {
		if existing := m.jobs[id]; existing != nil && !existing.Status.Finished() {
			return *existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[j.ID] = j
	m.byKey[req.key()] = j.ID
	return *j, true
}

// GetJob returns a snapshot of the job, or nil if it does not exist
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *j
	return &snapshot
}

// Start marks a pending job as running and returns its context. ok is false
// when the job no longer exists or was cancelled before it started.
func (m *JobManager) Start(jobID string) (ctx context.Context, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, exists := m.jobs[jobID]
	if !exists || j.Status != JobStatusPending {
		return nil, false
	}
	j.Status = JobStatusRunning
	return j.ctx, true
}

// Finish records the outcome of a running job. A job cancelled meanwhile
// stays cancelled.
func (m *JobManager) Finish(jobID string, res *models.FetchAndExtractionResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, exists := m.jobs[jobID]
	if !exists || j.Status.Finished() {
		return
	}
	j.CompletedAt = time.Now()
	delete(m.byKey, j.Request.key())
	j.cancel()
	if err != nil {
		j.Status = JobStatusFailed
		j.ErrorMessage = err.Error()
		return
	}
	j.Status = JobStatusCompleted
	j.Result = res
}

// CancelJob cancels an unfinished job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, exists := m.jobs[jobID]
	if !exists || j.Status.Finished() {
		return false
	}
	m.cancelLocked(j)
	return true
}

// CancelAll cancels every unfinished job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if !j.Status.Finished() {
			m.cancelLocked(j)
		}
	}
}

func (m *JobManager) cancelLocked(j *Job) {
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
	delete(m.byKey, j.Request.key())
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	return jobs
}

// Cleanup drops finished jobs completed more than maxAge ago and returns how many were removed
func (m *JobManager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, j := range m.jobs {
		if j.Status.Finished() && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done. Should be run in a goroutine.
func (m *JobManager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

// Package service composes the capture pipeline and its batch and
// background variants.
package service

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents a background ingestion job.
type Job struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Status      JobStatus     `json:"status"`
	DirPath     string        `json:"dir_path"`
	Progress    int           `json:"progress"`
	Total       int           `json:"total"`
	Result      *IngestResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// maxFinishedJobs bounds how many completed or failed jobs stay queryable.
const maxFinishedJobs = 100

// JobManager tracks background jobs in memory. Jobs do not survive a
// restart; the oldest finished jobs are dropped once more than
// maxFinishedJobs have accumulated.
type JobManager struct {
	jobs        map[string]*Job
	mu          sync.RWMutex
	concurrency int
	keep        int
	logger      *slog.Logger
}

// NewJobManager creates a job manager.
func NewJobManager(concurrency int, logger *slog.Logger) *JobManager {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		concurrency: concurrency,
		keep:        maxFinishedJobs,
		logger:      logger,
	}
}

// Concurrency returns the configured concurrency level.
func (m *JobManager) Concurrency() int {
	return m.concurrency
}

// CreateJob registers a new pending job.
func (m *JobManager) CreateJob(jobType, dirPath string, files []string) *Job {
	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Type:      jobType,
		Status:    JobStatusPending,
		DirPath:   dirPath,
		Total:     len(files),
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.pruneLocked()
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", job.ID, "type", jobType, "files", len(files))
	return job
}

// pruneLocked drops the oldest finished jobs beyond the retention limit.
// Caller must hold the write lock.
func (m *JobManager) pruneLocked() {
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, job := range m.jobs {
		job.mu.RLock()
		if job.CompletedAt != nil {
			done = append(done, finished{id, *job.CompletedAt})
		}
		job.mu.RUnlock()
	}
	if len(done) <= m.keep {
		return
	}
	slices.SortFunc(done, func(a, b finished) int { return a.at.Compare(b.at) })
	for _, f := range done[:len(done)-m.keep] {
		delete(m.jobs, f.id)
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return jobs
}

// UpdateProgress records how many files have been started.
func (m *JobManager) UpdateProgress(job *Job, current, total int) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Progress = current
	job.Total = total
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// SetRunning marks job as running.
func (m *JobManager) SetRunning(job *Job) {
	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
}

// Complete marks job as completed with result.
func (m *JobManager) Complete(job *Job, result *IngestResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Result = result
	job.Progress = result.FilesProcessed
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("job completed", "job_id", job.ID, "notes", result.NotesCreated, "errors", len(result.Errors))
}

// Fail marks job as failed with error.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		DirPath:     j.DirPath,
		Progress:    j.Progress,
		Total:       j.Total,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

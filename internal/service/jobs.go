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

// Job represents a background import job.
type Job struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"` // "import"
	Status      JobStatus     `json:"status"`
	Name        string        `json:"name"`
	Progress    int           `json:"progress"`
	Total       int           `json:"total"`
	Result      *ImportResult `json:"result,omitempty"`
	Error       *string       `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// JobManager tracks background jobs in memory.
type JobManager struct {
	jobs        map[string]*Job
	mu          sync.RWMutex
	concurrency int
}

// NewJobManager creates a new job manager.
func NewJobManager(concurrency int) *JobManager {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &JobManager{
		jobs:        make(map[string]*Job),
		concurrency: concurrency,
	}
}

// Concurrency returns the configured concurrency level.
func (m *JobManager) Concurrency() int {
	return m.concurrency
}

// CreateJob registers a new pending job.
func (m *JobManager) CreateJob(jobType, name string, total int) *Job {
	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Type:      jobType,
		Status:    JobStatusPending,
		Name:      name,
		Total:     total,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	slog.Info("job created", "job_id", job.ID, "name", name, "type", jobType, "total", total)
	return job
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

// UpdateProgress updates job progress.
func (m *JobManager) UpdateProgress(job *Job, current int) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Progress = current
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Complete marks job as completed with result.
func (m *JobManager) Complete(job *Job, result *ImportResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Result = result
	job.Progress = job.Total
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	slog.Info("job completed", "job_id", job.ID, "created", result.Created, "merged", result.Merged, "errors", len(result.Errors))
}

// Fail marks job as failed with error.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	msg := err.Error()
	job.Error = &msg
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	slog.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		Name:        j.Name,
		Progress:    j.Progress,
		Total:       j.Total,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

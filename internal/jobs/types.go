package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExport represents a ledger export job.
	JobTypeExport JobType = "export"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ExportTarget selects where an export job writes the ledger.
type ExportTarget string

const (
	// ExportTargetGCS writes a CSV snapshot to Cloud Storage.
	ExportTargetGCS ExportTarget = "gcs"
	// ExportTargetBigQuery mirrors new rows into the warehouse table.
	ExportTargetBigQuery ExportTarget = "bigquery"
)

// ParseExportTarget accepts only the known targets.
func ParseExportTarget(s string) (ExportTarget, error) {
	switch t := ExportTarget(s); t {
	case ExportTargetGCS, ExportTargetBigQuery:
		return t, nil
	default:
		return "", fmt.Errorf("unknown export target %q", s)
	}
}

// ExportJob exports one user's ledger to one target.
type ExportJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID owns the exported ledger and the job itself.
	UserID string `json:"user_id"`

	// Target is where the ledger is written.
	Target ExportTarget `json:"target"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Result describes the output, e.g. the gs:// URI or the number of mirrored rows.
	Result string `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExportJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExportJob) GetType() JobType {
	return JobTypeExport
}

// GetStatus implements the Job interface.
func (j *ExportJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishExport publishes a ledger export job.
	PublishExport(ctx context.Context, job *ExportJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ExportJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ExportJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// ErrJobNotFound is returned by JobStore.GetJob for unknown ids.
var ErrJobNotFound = errors.New("job not found")

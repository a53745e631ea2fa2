package jobs

import (
	"context"
	"time"
)

type JobType string

// JobTypeImportFile imports an SIE file stored in GCS.
const JobTypeImportFile JobType = "import_sie_file"

// JobStatus is the lifecycle state of a job:
// pending -> running -> completed | retrying -> pending ... -> failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether no further attempts will be made.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries applies when a published job sets no MaxRetries.
const DefaultMaxRetries = 3

// ImportFileJob imports one SIE file from GCS for a tenant.
type ImportFileJob struct {
	JobID string `json:"job_id"`

	TenantID   string `json:"tenant_id"`
	ActorID    string `json:"actor_id"`
	GCSURI     string `json:"gcs_uri"`
	FiscalYear int    `json:"fiscal_year"`

	// ImportRunID is set once the import run row exists.
	ImportRunID string `json:"import_run_id,omitempty"`

	// PeriodsImported and ImportErrors describe the last finished attempt.
	// A job whose import wrote only some periods still completes.
	PeriodsImported int      `json:"periods_imported"`
	ImportErrors    []string `json:"import_errors,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportFileJob) GetID() string        { return j.JobID }
func (j *ImportFileJob) GetType() JobType     { return JobTypeImportFile }
func (j *ImportFileJob) GetStatus() JobStatus { return j.Status }

// Clone returns a deep copy of the job.
func (j *ImportFileJob) Clone() *ImportFileJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.ImportErrors != nil {
		c.ImportErrors = append([]string(nil), j.ImportErrors...)
	}
	return &c
}

// Publisher enqueues import jobs.
type Publisher interface {
	PublishImportFile(ctx context.Context, job *ImportFileJob) error
	Close() error
}

// Consumer runs a JobHandler for every job until stopped.
// Stop waits for in-flight jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A non-nil error schedules a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for the jobs API.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportFileJob) error
	// GetJob returns ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, jobID string) (*ImportFileJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportFileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	TenantID string
	Status   JobStatus
	Limit    int
	Offset   int
}

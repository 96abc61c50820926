// Package jobs defines the asynchronous import queue: uploads are
// archived first, then parsed out of band by the worker.
package jobs

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// ImportDocumentJob asks the worker to run one archived document through
// the import pipeline.
type ImportDocumentJob struct {
	JobID string `json:"job_id"`

	// DocURI locates the archived document in the document store.
	DocURI   string `json:"doc_uri"`
	FileName string `json:"file_name"`
	MIME     string `json:"mime"`

	AccountID     string `json:"account_id"`
	SourceTag     string `json:"source_tag,omitempty"`
	NegateAmounts bool   `json:"negate_amounts,omitempty"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Publisher enqueues import jobs. The in-memory queue is the only
// implementation today; the interface keeps the door open for a broker.
type Publisher interface {
	PublishImport(ctx context.Context, job *ImportDocumentJob) error
	Close() error
}

// Handler processes one job. A returned error requeues the job until its
// retry budget runs out.
type Handler func(ctx context.Context, job *ImportDocumentJob) error

// Consumer drains the queue through a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	// Stop waits for in-flight jobs, bounded by the context deadline.
	Stop(ctx context.Context) error
}

// Store tracks job state so callers can poll for completion.
type Store interface {
	SaveJob(ctx context.Context, job *ImportDocumentJob) error
	GetJob(ctx context.Context, jobID string) (*ImportDocumentJob, error)
	ListJobs(ctx context.Context, filter Filter) ([]*ImportDocumentJob, error)
}

// Filter narrows ListJobs. Zero values mean "no filter".
type Filter struct {
	AccountID string
	Status    Status
	Limit     int
	Offset    int
}

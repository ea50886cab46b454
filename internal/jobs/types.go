package jobs

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies what kind of work a job carries.
type Type string

const (
	// TypeImportTransactions ingests a transaction file into an account.
	TypeImportTransactions Type = "import_transactions"
	// TypeEvaluateTransaction runs detection rules against one transaction.
	TypeEvaluateTransaction Type = "evaluate_transaction"
	// TypeEvaluateAccount re-runs detection rules over an account's
	// recent transactions.
	TypeEvaluateAccount Type = "evaluate_account"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Job is a unit of queued work. Payload and Result schemas are keyed by
// Type.
type Job struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ImportPayload is the payload for TypeImportTransactions.
type ImportPayload struct {
	AccountID string `json:"account_id"`
	FilePath  string `json:"file_path"`
}

// EvaluateTransactionPayload is the payload for TypeEvaluateTransaction.
type EvaluateTransactionPayload struct {
	TransactionID string `json:"transaction_id"`
}

// EvaluateAccountPayload is the payload for TypeEvaluateAccount.
type EvaluateAccountPayload struct {
	AccountID string `json:"account_id"`
}

// Handler processes one job. A returned error marks the job failed and
// eligible for retry; the handler may set Result before returning.
type Handler func(ctx context.Context, job *Job) error

// Publisher enqueues jobs. Implementations may be in-memory or a real
// broker; callers only see this interface.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
	Close() error
}

// Consumer pulls jobs and runs them through a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	// Stop quits accepting work and waits for in-flight jobs, bounded
	// by ctx.
	Stop(ctx context.Context) error
}

// Store tracks job state so callers can poll progress and results.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, f Filter) ([]*Job, error)
}

// Filter narrows Store.List.
type Filter struct {
	Type   Type
	Status Status
	Limit  int
}

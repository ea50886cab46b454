package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jfields/txsentry/internal/logger"
	"github.com/jfields/txsentry/internal/service"
)

// Dispatcher routes queued jobs to the services that execute them.
// Imports for the same account are serialized with a per-account lock
// so two concurrent file imports cannot interleave balance updates.
type Dispatcher struct {
	Ingest *service.IngestService
	Engine *service.RuleEngine
	// Store, when set, receives progress snapshots for long imports so
	// callers can poll the job while it runs.
	Store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Handle implements the Handler signature for a queue consumer.
func (d *Dispatcher) Handle(ctx context.Context, job *Job) error {
	log := logger.FromContext(ctx).With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()
	ctx = logger.WithContext(ctx, log)

	switch job.Type {
	case TypeImportTransactions:
		return d.handleImport(ctx, job)
	case TypeEvaluateTransaction:
		return d.handleEvaluateTransaction(ctx, job)
	case TypeEvaluateAccount:
		return d.handleEvaluateAccount(ctx, job)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (d *Dispatcher) handleImport(ctx context.Context, job *Job) error {
	var p ImportPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode import payload: %w", err)
	}

	unlock := d.lockAccount(p.AccountID)
	defer unlock()

	f, err := os.Open(p.FilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	ing := *d.Ingest
	if d.Store != nil {
		ing.Progress = func(pr service.ImportProgress) {
			snap, err := json.Marshal(pr)
			if err != nil {
				return
			}
			job.Result = snap
			if err := d.Store.Save(ctx, job); err != nil {
				logger.FromContext(ctx).Warn().Err(err).Msg("save import progress")
			}
		}
	}

	res, err := ing.Import(ctx, f, p.AccountID, nil)
	if err != nil {
		return err
	}
	job.Result, err = json.Marshal(res)
	return err
}

func (d *Dispatcher) handleEvaluateTransaction(ctx context.Context, job *Job) error {
	var p EvaluateTransactionPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode evaluate payload: %w", err)
	}
	return d.Engine.EvaluateTransaction(ctx, p.TransactionID)
}

func (d *Dispatcher) handleEvaluateAccount(ctx context.Context, job *Job) error {
	var p EvaluateAccountPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode evaluate payload: %w", err)
	}
	n, err := d.Engine.RunRulesForAccount(ctx, p.AccountID)
	if err != nil {
		return err
	}
	job.Result, err = json.Marshal(map[string]int{"evaluated": n})
	return err
}

func (d *Dispatcher) lockAccount(accountID string) func() {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = make(map[string]*sync.Mutex)
	}
	l, ok := d.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[accountID] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}

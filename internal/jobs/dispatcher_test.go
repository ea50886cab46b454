package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/service"
)

func newDispatcher(t *testing.T, ctx context.Context) (*Dispatcher, repository.Account) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	acct := repository.Account{
		ID:       uuid.NewString(),
		UserID:   "user-1",
		Name:     "Checking",
		Currency: "USD",
	}
	acctRepo := repository.NewAccountRepo(db)
	require.NoError(t, acctRepo.Create(ctx, acct))

	txRepo := repository.NewTransactionRepo(db)
	ruleRepo := repository.NewRuleRepo(db)
	alerts := &service.AlertService{
		Alerts: repository.NewAlertRepo(db),
		Rules:  ruleRepo,
		Audit:  repository.NewAuditRepo(db),
	}
	d := &Dispatcher{
		Ingest: &service.IngestService{
			DB:           db,
			Transactions: txRepo,
			Accounts:     acctRepo,
			Audit:        repository.NewAuditRepo(db),
		},
		Engine: &service.RuleEngine{
			Transactions: txRepo,
			Accounts:     acctRepo,
			Rules:        ruleRepo,
			Alerts:       alerts,
		},
	}
	return d, acct
}

func TestDispatcherImportJob(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, acct := newDispatcher(t, ctx)

	csvPath := filepath.Join(t.TempDir(), "feed.csv")
	data := "date,description,amount\n2026-03-01,SALARY,5000.00\n2026-03-02,COFFEE,-4.50\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))

	payload, err := json.Marshal(ImportPayload{AccountID: acct.ID, FilePath: csvPath})
	require.NoError(t, err)
	job := &Job{ID: "j1", Type: TypeImportTransactions, Payload: payload}

	require.NoError(t, d.Handle(ctx, job))

	var res service.ImportResult
	require.NoError(t, json.Unmarshal(job.Result, &res))
	require.Equal(t, 2, res.Successful)
	require.Equal(t, 0, res.Failed)
}

// recordingStore captures Save snapshots for progress assertions.
type recordingStore struct {
	saves []Job
}

func (s *recordingStore) Save(ctx context.Context, job *Job) error {
	s.saves = append(s.saves, *job)
	return nil
}
func (s *recordingStore) Get(ctx context.Context, id string) (*Job, error) { return nil, nil }
func (s *recordingStore) List(ctx context.Context, f Filter) ([]*Job, error) {
	return nil, nil
}

func TestDispatcherImportProgress(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, acct := newDispatcher(t, ctx)
	d.Ingest.BatchSize = 1
	store := &recordingStore{}
	d.Store = store

	csvPath := filepath.Join(t.TempDir(), "feed.csv")
	data := "date,description,amount\n2026-03-01,SALARY,5000.00\n2026-03-02,COFFEE,-4.50\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))

	payload, err := json.Marshal(ImportPayload{AccountID: acct.ID, FilePath: csvPath})
	require.NoError(t, err)
	job := &Job{ID: "j5", Type: TypeImportTransactions, Payload: payload}

	require.NoError(t, d.Handle(ctx, job))

	// One snapshot per batch.
	require.Len(t, store.saves, 2)
	var p service.ImportProgress
	require.NoError(t, json.Unmarshal(store.saves[1].Result, &p))
	require.Equal(t, 2, p.Processed)
	require.Equal(t, 2, p.Successful)

	// The final result overwrites the last progress snapshot.
	var res service.ImportResult
	require.NoError(t, json.Unmarshal(job.Result, &res))
	require.Equal(t, 2, res.Successful)
}

func TestDispatcherEvaluateAccountJob(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, acct := newDispatcher(t, ctx)

	payload, err := json.Marshal(EvaluateAccountPayload{AccountID: acct.ID})
	require.NoError(t, err)
	job := &Job{ID: "j2", Type: TypeEvaluateAccount, Payload: payload}

	require.NoError(t, d.Handle(ctx, job))
	require.JSONEq(t, `{"evaluated":0}`, string(job.Result))
}

func TestDispatcherUnknownType(t *testing.T) {
	t.Parallel()

	d := &Dispatcher{}
	err := d.Handle(context.Background(), &Job{ID: "j3", Type: "defragment"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown job type")
}

func TestDispatcherBadPayload(t *testing.T) {
	t.Parallel()

	d := &Dispatcher{}
	err := d.Handle(context.Background(), &Job{
		ID:      "j4",
		Type:    TypeEvaluateTransaction,
		Payload: json.RawMessage(`{`),
	})
	require.Error(t, err)
}

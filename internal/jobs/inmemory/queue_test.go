package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jfields/txsentry/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.Get(context.Background(), id)
		if err == nil && j.Status == want {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(8, 2, store)
	t.Cleanup(func() { _ = q.Close() })

	handled := make(chan string, 1)
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		job.Result = json.RawMessage(`{"ok":true}`)
		handled <- job.ID
		return nil
	}))

	job := &jobs.Job{Type: jobs.TypeEvaluateAccount, Payload: json.RawMessage(`{"account_id":"a1"}`)}
	require.NoError(t, q.Publish(ctx, job))
	require.NotEmpty(t, job.ID, "publish assigns an ID")

	select {
	case id := <-handled:
		require.Equal(t, job.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}

	got := waitForStatus(t, store, job.ID, jobs.StatusCompleted)
	require.JSONEq(t, `{"ok":true}`, string(got.Result))
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.Empty(t, got.Error)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(8, 1, store)
	t.Cleanup(func() { _ = q.Close() })

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	}))

	job := &jobs.Job{Type: jobs.TypeEvaluateTransaction, Payload: json.RawMessage(`{}`)}
	require.NoError(t, q.Publish(ctx, job))

	got := waitForStatus(t, store, job.ID, jobs.StatusCompleted)
	require.Equal(t, 1, got.RetryCount)
	require.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestQueueExhaustsRetries(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(8, 1, store)
	t.Cleanup(func() { _ = q.Close() })

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		return errors.New("permanent")
	}))

	job := &jobs.Job{Type: jobs.TypeEvaluateTransaction, MaxRetries: 1, Payload: json.RawMessage(`{}`)}
	require.NoError(t, q.Publish(ctx, job))

	got := waitForStatus(t, store, job.ID, jobs.StatusFailed)
	require.Equal(t, 1, got.RetryCount)
	require.Contains(t, got.Error, "permanent")
}

func TestQueuePublishAfterStop(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Stop(context.Background()))
	err := q.Publish(context.Background(), &jobs.Job{Type: jobs.TypeEvaluateAccount})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueStopWaitsForInflight(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(1, 1, store)

	var mu sync.Mutex
	finished := false
	started := make(chan struct{})

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
		return nil
	}))

	require.NoError(t, q.Publish(ctx, &jobs.Job{Type: jobs.TypeEvaluateAccount}))
	<-started

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, q.Stop(stopCtx))

	mu.Lock()
	defer mu.Unlock()
	require.True(t, finished, "stop returned before the in-flight job finished")
}

func TestStoreListFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	base := time.Now().UTC()
	for i, typ := range []jobs.Type{jobs.TypeImportTransactions, jobs.TypeEvaluateAccount, jobs.TypeImportTransactions} {
		j := &jobs.Job{
			ID:        jobIDForTest(i),
			Type:      typ,
			Status:    jobs.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Save(ctx, j))
	}

	imports, err := store.List(ctx, jobs.Filter{Type: jobs.TypeImportTransactions})
	require.NoError(t, err)
	require.Len(t, imports, 2)
	// Newest first.
	require.True(t, imports[0].CreatedAt.After(imports[1].CreatedAt))

	limited, err := store.List(ctx, jobs.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func jobIDForTest(i int) string {
	return string(rune('a' + i))
}

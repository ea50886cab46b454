package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedTx(t *testing.T, ctx context.Context, repo *repository.TransactionRepo, accountID string, ts time.Time, cents int64) {
	t.Helper()
	seedTxReturning(t, ctx, repo, accountID, ts, cents)
}

func seedTxReturning(t *testing.T, ctx context.Context, repo *repository.TransactionRepo, accountID string, ts time.Time, cents int64) string {
	t.Helper()
	tx, err := repo.InsertOrGet(ctx, repository.Transaction{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Timestamp:      ts,
		Description:    "seed",
		Amount:         cents,
		Currency:       "USD",
		Source:         repository.SourceManual,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	return tx.ID
}

func TestSummaryByAccount(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db := openTestDB(t)
	acct := repository.Account{ID: uuid.NewString(), UserID: "user-1", Name: "Checking", Currency: "USD"}
	require.NoError(t, repository.NewAccountRepo(db).Create(ctx, acct))
	repo := repository.NewTransactionRepo(db)

	now := time.Now().UTC()
	seedTx(t, ctx, repo, acct.ID, now.AddDate(0, 0, -1), 500000)
	seedTx(t, ctx, repo, acct.ID, now.AddDate(0, 0, -2), -120000)
	seedTx(t, ctx, repo, acct.ID, now.AddDate(0, 0, -3), -30000)
	// Old row, excluded by the since filter below.
	seedTx(t, ctx, repo, acct.ID, now.AddDate(0, 0, -40), -99999)

	s, err := repo.SummaryByAccount(ctx, acct.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 4, s.Count)
	require.Equal(t, int64(500000), s.TotalCredit)
	require.Equal(t, int64(120000+30000+99999), s.TotalDebit)
	require.Equal(t, int64(500000-120000-30000-99999), s.Net)
	require.Equal(t, int64(62500), s.Average)

	recent, err := repo.SummaryByAccount(ctx, acct.ID, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Equal(t, 3, recent.Count)
	require.Equal(t, int64(500000-120000-30000), recent.Net)
}

func TestTotalsByCategory(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db := openTestDB(t)
	acct := repository.Account{ID: uuid.NewString(), UserID: "user-1", Name: "Checking", Currency: "USD"}
	require.NoError(t, repository.NewAccountRepo(db).Create(ctx, acct))
	repo := repository.NewTransactionRepo(db)

	cat := repository.Category{ID: uuid.NewString(), Name: "Groceries"}
	require.NoError(t, repository.NewCategoryRepo(db).Upsert(ctx, cat))

	now := time.Now().UTC()
	seedTx(t, ctx, repo, acct.ID, now, -5000)
	grocery := seedTxReturning(t, ctx, repo, acct.ID, now, -20000)
	require.NoError(t, repo.UpdateCategory(ctx, grocery, &cat.ID))

	totals, err := repo.TotalsByCategory(ctx, acct.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, totals, 2)

	// Largest absolute total first.
	require.NotNil(t, totals[0].CategoryID)
	require.Equal(t, cat.ID, *totals[0].CategoryID)
	require.Equal(t, int64(-20000), totals[0].Total)
	require.Nil(t, totals[1].CategoryID)
	require.Equal(t, 1, totals[1].Count)
	require.Equal(t, int64(-5000), totals[1].Total)
}

func TestSummaryByAccountEmpty(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db := openTestDB(t)
	repo := repository.NewTransactionRepo(db)

	s, err := repo.SummaryByAccount(ctx, uuid.NewString(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, repository.TransactionSummary{}, s)
}

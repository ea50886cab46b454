package service

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

// newTestDB opens a migrated throwaway sqlite database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestAccount(t *testing.T, ctx context.Context, db *sql.DB) repository.Account {
	t.Helper()
	a := repository.Account{
		ID:       uuid.NewString(),
		UserID:   "user-1",
		Name:     "Checking",
		Currency: "USD",
	}
	require.NoError(t, repository.NewAccountRepo(db).Create(ctx, a))
	return a
}

// insertTx writes a transaction directly, bypassing the import path.
func insertTx(t *testing.T, ctx context.Context, db *sql.DB, accountID string, ts time.Time, cents int64, desc string) repository.Transaction {
	t.Helper()
	tx := repository.Transaction{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Timestamp:      ts,
		Description:    desc,
		Amount:         cents,
		Currency:       "USD",
		Source:         repository.SourceManual,
		IdempotencyKey: uuid.NewString(),
	}
	_, err := repository.NewTransactionRepo(db).InsertOrGet(ctx, tx)
	require.NoError(t, err)
	return tx
}

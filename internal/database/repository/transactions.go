package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// TransactionRepo handles the transaction ledger and the aggregate
// queries the rule engine evaluates against.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const txColumns = `id, account_id, timestamp, description, amount, currency, merchant,
 merchant_category, category_id, source, reference_number, idempotency_key, created_at, updated_at`

// InsertIgnore inserts t, silently skipping rows whose idempotency key
// or reference number already exists. It reports whether a row was
// actually written, which is how ingestion distinguishes new rows from
// duplicates without treating the conflict as an error.
func (r *TransactionRepo) InsertIgnore(ctx context.Context, tx *sql.Tx, t Transaction) (bool, error) {
	res, err := tx.ExecContext(ctx, `
	INSERT OR IGNORE INTO transactions(`+txColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, t.ID, t.AccountID, t.Timestamp, t.Description, t.Amount, t.Currency, t.Merchant,
		t.MerchantCategory, t.CategoryID, t.Source, t.ReferenceNumber, t.IdempotencyKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertOrGet inserts t, or returns the existing row when the
// idempotency key is already present. Re-submitting the same key is a
// no-op by contract, never an error.
func (r *TransactionRepo) InsertOrGet(ctx context.Context, t Transaction) (Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO transactions(`+txColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, t.ID, t.AccountID, t.Timestamp, t.Description, t.Amount, t.Currency, t.Merchant,
		t.MerchantCategory, t.CategoryID, t.Source, t.ReferenceNumber, t.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Transaction{}, err
	} else if n > 0 {
		return r.Get(ctx, t.ID)
	}
	return r.GetByIdempotencyKey(ctx, t.IdempotencyKey)
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return t, err
}

func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE idempotency_key = ?`, key)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, fmt.Errorf("idempotency key %s: %w", key, ErrNotFound)
	}
	return t, err
}

func (r *TransactionRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET category_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, categoryID, id)
	return err
}

// TransactionFilters defines list filters.
type TransactionFilters struct {
	AccountID     string
	Uncategorized bool
	Since         time.Time
	Until         time.Time
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Uncategorized {
		where = append(where, "category_id IS NULL")
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp > ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until)
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

// AvgAbsAmountSince returns mean(|amount|) in cents over the account's
// transactions newer than since. ok is false when there is no history.
func (r *TransactionRepo) AvgAbsAmountSince(ctx context.Context, accountID string, since time.Time) (mean float64, ok bool, err error) {
	var avg sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `
	SELECT AVG(ABS(amount)) FROM transactions
	WHERE account_id = ? AND timestamp > ?`, accountID, since).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	return avg.Float64, avg.Valid, nil
}

// CountInWindow counts the account's transactions inside [start, end].
func (r *TransactionRepo) CountInWindow(ctx context.Context, accountID string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM transactions
	WHERE account_id = ? AND timestamp BETWEEN ? AND ?`, accountID, start, end).Scan(&n)
	return n, err
}

// CountAbsAmountBetween counts transactions inside [start, end] whose
// |amount| lies strictly between the two cent bounds. Both bounds are
// exclusive, matching the structuring policy of "under the reporting
// threshold but inside tolerance".
func (r *TransactionRepo) CountAbsAmountBetween(ctx context.Context, accountID string, start, end time.Time, lowCents, highCents int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM transactions
	WHERE account_id = ? AND timestamp BETWEEN ? AND ?
	  AND ABS(amount) > ? AND ABS(amount) < ?`,
		accountID, start, end, lowCents, highCents).Scan(&n)
	return n, err
}

// TransactionSummary aggregates an account's ledger activity in cents.
// TotalDebit is reported as a positive figure.
type TransactionSummary struct {
	Count       int
	TotalCredit int64
	TotalDebit  int64
	Net         int64
	Average     int64
}

// SummaryByAccount computes credit/debit totals, net flow and the mean
// signed amount for an account, optionally limited to rows newer than
// since (zero means all history). Average is rounded to the nearest cent.
func (r *TransactionRepo) SummaryByAccount(ctx context.Context, accountID string, since time.Time) (TransactionSummary, error) {
	query := `
	SELECT COUNT(*),
	       COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0),
	       COALESCE(SUM(amount), 0),
	       AVG(amount)
	FROM transactions
	WHERE account_id = ?`
	args := []interface{}{accountID}
	if !since.IsZero() {
		query += ` AND timestamp > ?`
		args = append(args, since)
	}

	var (
		s   TransactionSummary
		avg sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.Count, &s.TotalCredit, &s.TotalDebit, &s.Net, &avg)
	if err != nil {
		return TransactionSummary{}, err
	}
	if avg.Valid {
		s.Average = int64(math.Round(avg.Float64))
	}
	return s, nil
}

// CategoryTotal is one row of a per-category spend breakdown. A nil
// CategoryID bucket collects uncategorized transactions.
type CategoryTotal struct {
	CategoryID *string
	Count      int
	Total      int64
}

// TotalsByCategory groups an account's transactions by category and
// sums signed amounts, largest absolute total first.
func (r *TransactionRepo) TotalsByCategory(ctx context.Context, accountID string, since time.Time) ([]CategoryTotal, error) {
	query := `
	SELECT category_id, COUNT(*), COALESCE(SUM(amount), 0)
	FROM transactions
	WHERE account_id = ?`
	args := []interface{}{accountID}
	if !since.IsZero() {
		query += ` AND timestamp > ?`
		args = append(args, since)
	}
	query += ` GROUP BY category_id ORDER BY ABS(COALESCE(SUM(amount), 0)) DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Count, &ct.Total); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// AbsAmountStatsSince returns count, mean and population standard
// deviation of |amount| (cents) newer than since. SQLite has no
// STDDEV_POP, so the variance is derived from avg(x*x) - avg(x)^2.
func (r *TransactionRepo) AbsAmountStatsSince(ctx context.Context, accountID string, since time.Time) (AmountStats, error) {
	var (
		count int
		avg   sql.NullFloat64
		avgSq sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	       AVG(ABS(amount)),
	       AVG(CAST(ABS(amount) AS REAL) * ABS(amount))
	FROM transactions
	WHERE account_id = ? AND timestamp > ?`, accountID, since).Scan(&count, &avg, &avgSq)
	if err != nil {
		return AmountStats{}, err
	}
	stats := AmountStats{Count: count, Mean: avg.Float64}
	if avg.Valid && avgSq.Valid {
		variance := avgSq.Float64 - avg.Float64*avg.Float64
		if variance > 0 {
			stats.StdDev = math.Sqrt(variance)
		}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Timestamp, &t.Description, &t.Amount, &t.Currency,
		&t.Merchant, &t.MerchantCategory, &t.CategoryID, &t.Source, &t.ReferenceNumber,
		&t.IdempotencyKey, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

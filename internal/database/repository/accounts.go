package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, user_id, name, currency, balance, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`, a.ID, a.UserID, a.Name, a.Currency, a.Balance)
	return err
}

func (r *AccountRepo) Get(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, user_id, name, currency, balance, created_at, updated_at
	FROM accounts WHERE id = ?`, id)
	var a Account
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (r *AccountRepo) List(ctx context.Context, userID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, name, currency, balance, created_at, updated_at
	FROM accounts WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AdjustBalance applies a signed delta (cents) in a single statement so
// concurrent adjustments never lose updates.
func (r *AccountRepo) AdjustBalance(ctx context.Context, id string, deltaCents int64) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE accounts SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		deltaCents, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AlertRepo stores reviewable rule violations.
type AlertRepo struct{ db *sql.DB }

func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, user_id, transaction_id, rule_id, status, notes, context,
 assigned_to, resolved_at, resolved_by, created_at, updated_at`

func (r *AlertRepo) Create(ctx context.Context, a Alert) error {
	var contextJSON *string
	if len(a.Context) > 0 {
		s := string(a.Context)
		contextJSON = &s
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO alerts(`+alertColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, a.ID, a.UserID, a.TransactionID, a.RuleID, a.Status, a.Notes, contextJSON,
		a.AssignedTo, a.ResolvedAt, a.ResolvedBy)
	return err
}

func (r *AlertRepo) Get(ctx context.Context, id string) (Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Alert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return a, err
}

// Update persists mutable alert fields. RuleID and TransactionID are
// deliberately not part of the statement; they never change after
// creation.
func (r *AlertRepo) Update(ctx context.Context, a Alert) error {
	var contextJSON *string
	if len(a.Context) > 0 {
		s := string(a.Context)
		contextJSON = &s
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE alerts SET status = ?, notes = ?, context = ?, assigned_to = ?,
	 resolved_at = ?, resolved_by = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		a.Status, a.Notes, contextJSON, a.AssignedTo, a.ResolvedAt, a.ResolvedBy, a.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (r *AlertRepo) ListByUser(ctx context.Context, userID string) ([]Alert, error) {
	return r.list(ctx, `WHERE user_id = ?`, userID)
}

func (r *AlertRepo) ListByStatus(ctx context.Context, status string) ([]Alert, error) {
	return r.list(ctx, `WHERE status = ?`, status)
}

func (r *AlertRepo) ListByRule(ctx context.Context, ruleID string) ([]Alert, error) {
	return r.list(ctx, `WHERE rule_id = ?`, ruleID)
}

// CountByStatus returns the point-in-time bucket counts. A single
// grouped scan keeps the buckets consistent with the total.
func (r *AlertRepo) CountByStatus(ctx context.Context) (AlertStatistics, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM alerts GROUP BY status`)
	if err != nil {
		return AlertStatistics{}, err
	}
	defer rows.Close()

	var stats AlertStatistics
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return AlertStatistics{}, err
		}
		stats.Total += n
		switch status {
		case AlertOpen:
			stats.Open = n
		case AlertReviewing:
			stats.Reviewing = n
		case AlertResolved:
			stats.Resolved = n
		case AlertFalsePositive:
			stats.FalsePositive = n
		case AlertEscalated:
			stats.Escalated = n
		}
	}
	return stats, rows.Err()
}

func (r *AlertRepo) list(ctx context.Context, where string, args ...interface{}) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row rowScanner) (Alert, error) {
	var (
		a           Alert
		contextJSON *string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.TransactionID, &a.RuleID, &a.Status, &a.Notes,
		&contextJSON, &a.AssignedTo, &a.ResolvedAt, &a.ResolvedBy, &a.CreatedAt, &a.UpdatedAt)
	if contextJSON != nil {
		a.Context = []byte(*contextJSON)
	}
	return a, err
}

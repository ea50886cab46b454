package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RuleRepo stores detection rules.
type RuleRepo struct{ db *sql.DB }

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, name, description, type, severity, condition, enabled, auto_resolve, created_at, updated_at`

func (r *RuleRepo) Create(ctx context.Context, rule Rule) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO rules(`+ruleColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, rule.ID, rule.Name, rule.Description, rule.Type, rule.Severity,
		string(rule.Condition), rule.Enabled, rule.AutoResolve)
	return err
}

func (r *RuleRepo) Get(ctx context.Context, id string) (Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return rule, err
}

func (r *RuleRepo) GetByName(ctx context.Context, name string) (Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE name = ?`, name)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Rule{}, fmt.Errorf("rule %q: %w", name, ErrNotFound)
	}
	return rule, err
}

func (r *RuleRepo) List(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, ``)
}

func (r *RuleRepo) ListEnabled(ctx context.Context) ([]Rule, error) {
	return r.list(ctx, `WHERE enabled = 1`)
}

func (r *RuleRepo) Update(ctx context.Context, rule Rule) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET name = ?, description = ?, type = ?, severity = ?, condition = ?,
	 enabled = ?, auto_resolve = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		rule.Name, rule.Description, rule.Type, rule.Severity, string(rule.Condition),
		rule.Enabled, rule.AutoResolve, rule.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	return nil
}

func (r *RuleRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE rules SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

func (r *RuleRepo) list(ctx context.Context, where string) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules `+where+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (Rule, error) {
	var (
		rule Rule
		cond string
	)
	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.Type, &rule.Severity,
		&cond, &rule.Enabled, &rule.AutoResolve, &rule.CreatedAt, &rule.UpdatedAt)
	rule.Condition = []byte(cond)
	return rule, err
}

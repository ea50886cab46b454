package repository

import (
	"context"
	"database/sql"
)

// CategorizationRuleRepo stores pattern-to-category rules.
type CategorizationRuleRepo struct{ db *sql.DB }

func NewCategorizationRuleRepo(db *sql.DB) *CategorizationRuleRepo {
	return &CategorizationRuleRepo{db: db}
}

func (r *CategorizationRuleRepo) Add(ctx context.Context, cr CategorizationRule) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categorization_rules(id, category_id, pattern, match_type, case_sensitive, priority, enabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, cr.ID, cr.CategoryID, cr.Pattern, cr.MatchType, cr.CaseSensitive, cr.Priority, cr.Enabled)
	return err
}

// ListEnabled returns enabled rules ordered by priority descending, ties
// broken by creation order. The categorizer scans them linearly and the
// first match wins.
func (r *CategorizationRuleRepo) ListEnabled(ctx context.Context) ([]CategorizationRule, error) {
	return r.list(ctx, `WHERE enabled = 1`)
}

func (r *CategorizationRuleRepo) ListByCategory(ctx context.Context, categoryID string) ([]CategorizationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, category_id, pattern, match_type, case_sensitive, priority, enabled, created_at
	FROM categorization_rules WHERE category_id = ?
	ORDER BY priority DESC, created_at ASC`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCatRules(rows)
}

func (r *CategorizationRuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE id = ?`, id)
	return err
}

func (r *CategorizationRuleRepo) list(ctx context.Context, where string) ([]CategorizationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, category_id, pattern, match_type, case_sensitive, priority, enabled, created_at
	FROM categorization_rules `+where+`
	ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCatRules(rows)
}

func scanCatRules(rows *sql.Rows) ([]CategorizationRule, error) {
	var out []CategorizationRule
	for rows.Next() {
		var cr CategorizationRule
		if err := rows.Scan(&cr.ID, &cr.CategoryID, &cr.Pattern, &cr.MatchType, &cr.CaseSensitive, &cr.Priority, &cr.Enabled, &cr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/logger"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes all user data. It keeps the schema intact so the app can continue running.
// Seeded defaults are wiped too; re-run seeding afterwards.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"audit_logs",
			"alerts",
			"rules",
			"transactions",
			"categorization_rules",
			"categories",
			"accounts",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}

// RecomputeBalances rewrites every account balance from the sum of its
// transactions. The incremental delta applied at import time should
// always agree with this; running it repairs drift after manual edits.
func (s *MaintenanceService) RecomputeBalances(ctx context.Context) (int, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("maintenance: db not configured")
	}
	var n int
	err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = COALESCE((
			SELECT SUM(amount) FROM transactions WHERE transactions.account_id = accounts.id
		), 0), updated_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n = int(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Info().Int("accounts", n).Msg("balances recomputed")
	return n, nil
}

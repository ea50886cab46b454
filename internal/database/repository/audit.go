package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Audit actions emitted by the core.
const (
	AuditTransactionImported = "transaction_imported"
	AuditAlertCreated        = "alert_created"
	AuditAlertReviewed       = "alert_reviewed"
	AuditAlertResolved       = "alert_resolved"
	AuditAlertEscalated      = "alert_escalated"
	AuditAlertUpdated        = "alert_updated"
	AuditRuleCreated         = "rule_created"
	AuditRuleUpdated         = "rule_updated"
	AuditRuleDeleted         = "rule_deleted"
)

// AuditRepo is the fire-and-forget audit sink. Callers ignore its
// errors by contract; a lost audit row never fails the operation that
// produced it.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Insert(ctx context.Context, e AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var metadata *string
	if len(e.Metadata) > 0 {
		s := string(e.Metadata)
		metadata = &s
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO audit_logs(id, user_id, action, resource_type, resource_id, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, e.ID, e.UserID, e.Action, e.ResourceType, e.ResourceID, metadata)
	return err
}

func (r *AuditRepo) ListByAction(ctx context.Context, action string) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, user_id, action, resource_type, resource_id, metadata, created_at
	FROM audit_logs WHERE action = ? ORDER BY created_at DESC`, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEvent
	for rows.Next() {
		var (
			e        AuditEvent
			metadata *string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metadata != nil {
			e.Metadata = []byte(*metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

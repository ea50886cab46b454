package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jfields/txsentry/internal/database/repository"
)

func newAlertService(t *testing.T, ctx context.Context) (*AlertService, *sql.DB, repository.Rule) {
	t.Helper()
	db := newTestDB(t)

	ruleRepo := repository.NewRuleRepo(db)
	rule := repository.Rule{
		ID:       uuid.NewString(),
		Name:     "test rule",
		Type:     repository.RuleLargeTransaction,
		Severity: repository.SeverityHigh,
		Enabled:  true,
	}
	require.NoError(t, ruleRepo.Create(ctx, rule))

	svc := &AlertService{
		Alerts: repository.NewAlertRepo(db),
		Rules:  ruleRepo,
		Audit:  repository.NewAuditRepo(db),
	}
	return svc, db, rule
}

func openAlert(t *testing.T, ctx context.Context, svc *AlertService, ruleID string) repository.Alert {
	t.Helper()
	evidence, _ := json.Marshal(map[string]interface{}{"threshold": 3000.0})
	a, err := svc.Create(ctx, CreateAlertInput{
		UserID:  "user-1",
		RuleID:  ruleID,
		Context: evidence,
	})
	require.NoError(t, err)
	require.Equal(t, repository.AlertOpen, a.Status)
	require.Nil(t, a.AssignedTo)
	require.Nil(t, a.ResolvedAt)
	return a
}

func TestAlertAssignThenResolve(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	a, err := svc.Assign(ctx, a.ID, "analyst-7")
	require.NoError(t, err)
	require.Equal(t, repository.AlertReviewing, a.Status)
	require.NotNil(t, a.AssignedTo)
	require.Equal(t, "analyst-7", *a.AssignedTo)
	require.Nil(t, a.ResolvedAt)

	notes := "confirmed and reported"
	a, err = svc.Resolve(ctx, a.ID, "analyst-7", &notes)
	require.NoError(t, err)
	require.Equal(t, repository.AlertResolved, a.Status)
	require.NotNil(t, a.ResolvedAt)
	require.NotNil(t, a.ResolvedBy)
	require.Equal(t, "analyst-7", *a.ResolvedBy)
	require.NotNil(t, a.Notes)
	require.Equal(t, notes, *a.Notes)
}

func TestAlertEscalateKeepsAlertLive(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	a, err := svc.Assign(ctx, a.ID, "analyst-7")
	require.NoError(t, err)

	a, err = svc.Escalate(ctx, a.ID, "analyst-7", nil)
	require.NoError(t, err)
	require.Equal(t, repository.AlertEscalated, a.Status)
	require.Nil(t, a.ResolvedAt, "escalation never stamps resolution")
	require.Nil(t, a.ResolvedBy)
	require.NotNil(t, a.AssignedTo, "escalation keeps the assignment")
	require.Equal(t, "analyst-7", *a.AssignedTo)

	// An escalated alert can still be resolved by a senior reviewer.
	a, err = svc.Resolve(ctx, a.ID, "senior-1", nil)
	require.NoError(t, err)
	require.Equal(t, repository.AlertResolved, a.Status)
	require.NotNil(t, a.ResolvedAt)
	require.Equal(t, "senior-1", *a.ResolvedBy)
}

func TestAlertFalsePositiveStamps(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	a, err := svc.MarkFalsePositive(ctx, a.ID, "analyst-2", nil)
	require.NoError(t, err)
	require.Equal(t, repository.AlertFalsePositive, a.Status)
	require.NotNil(t, a.ResolvedAt)
	require.Equal(t, "analyst-2", *a.ResolvedBy)
}

func TestAlertTerminalStatesRejectTransitions(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	a, err := svc.Resolve(ctx, a.ID, "analyst-1", nil)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, a.ID, "analyst-2")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Escalate(ctx, a.ID, "analyst-2", nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAlertUpdateSkipsLifecycleChecks(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	// Update writes the requested status as-is, stamping where the
	// status calls for it.
	a, err := svc.Update(ctx, a.ID, repository.AlertResolved, "analyst-1", nil)
	require.NoError(t, err)
	require.Equal(t, repository.AlertResolved, a.Status)
	require.NotNil(t, a.ResolvedAt)
	require.Equal(t, "analyst-1", *a.ResolvedBy)

	// Re-resolving an already resolved alert is an idempotent restamp,
	// not an error.
	notes := "second look"
	a, err = svc.Update(ctx, a.ID, repository.AlertResolved, "analyst-2", &notes)
	require.NoError(t, err)
	require.Equal(t, repository.AlertResolved, a.Status)
	require.Equal(t, "analyst-2", *a.ResolvedBy)
	require.Equal(t, notes, *a.Notes)

	// Even a status outside the lifecycle is written verbatim.
	a, err = svc.Update(ctx, a.ID, "archived", "analyst-2", nil)
	require.NoError(t, err)
	require.Equal(t, "archived", a.Status)
}

func TestAlertStatisticsSumToTotal(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, _, rule := newAlertService(t, ctx)

	a1 := openAlert(t, ctx, svc, rule.ID)
	a2 := openAlert(t, ctx, svc, rule.ID)
	a3 := openAlert(t, ctx, svc, rule.ID)
	openAlert(t, ctx, svc, rule.ID)

	_, err := svc.Assign(ctx, a1.ID, "analyst-1")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, a2.ID, "analyst-1", nil)
	require.NoError(t, err)
	_, err = svc.MarkFalsePositive(ctx, a3.ID, "analyst-1", nil)
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 1, stats.Open)
	require.Equal(t, 1, stats.Reviewing)
	require.Equal(t, 1, stats.Resolved)
	require.Equal(t, 1, stats.FalsePositive)
	require.Equal(t, 0, stats.Escalated)
	require.Equal(t, stats.Total, stats.Open+stats.Reviewing+stats.Resolved+stats.FalsePositive+stats.Escalated)
}

func TestAlertAuditTrail(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	svc, db, rule := newAlertService(t, ctx)
	a := openAlert(t, ctx, svc, rule.ID)

	_, err := svc.Resolve(ctx, a.ID, "analyst-1", nil)
	require.NoError(t, err)

	audit := repository.NewAuditRepo(db)
	created, err := audit.ListByAction(ctx, repository.AuditAlertCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)

	resolved, err := audit.ListByAction(ctx, repository.AuditAlertResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].ResourceID)
	require.Equal(t, a.ID, *resolved[0].ResourceID)
}

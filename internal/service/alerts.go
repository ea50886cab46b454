package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/logger"
)

// ErrInvalidTransition is returned when an alert status change is not
// allowed by the lifecycle.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// Legal alert lifecycle moves. Terminal states have no entries.
var alertTransitions = map[string][]string{
	repository.AlertOpen:      {repository.AlertReviewing, repository.AlertResolved, repository.AlertFalsePositive, repository.AlertEscalated},
	repository.AlertReviewing: {repository.AlertResolved, repository.AlertFalsePositive, repository.AlertEscalated},
	repository.AlertEscalated: {repository.AlertResolved, repository.AlertFalsePositive},
}

func transitionAllowed(from, to string) bool {
	for _, s := range alertTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateAlertInput is what the rule engine supplies when a rule fires.
type CreateAlertInput struct {
	UserID        string
	TransactionID *string
	RuleID        string
	Context       json.RawMessage
}

// AlertService owns the alert lifecycle. Alerts are created only by the
// rule engine; analysts move them through review states.
type AlertService struct {
	Alerts *repository.AlertRepo
	Rules  *repository.RuleRepo
	Audit  *repository.AuditRepo
}

// Create opens a new alert for a rule violation. Alerts always start
// open and unassigned.
func (s *AlertService) Create(ctx context.Context, in CreateAlertInput) (repository.Alert, error) {
	a := repository.Alert{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		TransactionID: in.TransactionID,
		RuleID:        in.RuleID,
		Status:        repository.AlertOpen,
		Context:       in.Context,
	}
	if err := s.Alerts.Create(ctx, a); err != nil {
		return repository.Alert{}, err
	}
	s.audit(ctx, repository.AuditAlertCreated, a.ID, nil, map[string]interface{}{
		"ruleId": in.RuleID,
	})
	return s.Alerts.Get(ctx, a.ID)
}

// Assign puts the alert under review by the named analyst.
func (s *AlertService) Assign(ctx context.Context, alertID, analyst string) (repository.Alert, error) {
	return s.transition(ctx, alertID, repository.AlertReviewing, analyst, nil, repository.AuditAlertReviewed)
}

// Resolve closes the alert as a confirmed, handled finding. ResolvedAt
// and ResolvedBy are stamped.
func (s *AlertService) Resolve(ctx context.Context, alertID, analyst string, notes *string) (repository.Alert, error) {
	return s.transition(ctx, alertID, repository.AlertResolved, analyst, notes, repository.AuditAlertResolved)
}

// MarkFalsePositive closes the alert as noise. Stamped like a
// resolution so the reviewer is on record.
func (s *AlertService) MarkFalsePositive(ctx context.Context, alertID, analyst string, notes *string) (repository.Alert, error) {
	return s.transition(ctx, alertID, repository.AlertFalsePositive, analyst, notes, repository.AuditAlertResolved)
}

// Escalate hands the alert to a senior reviewer. The alert stays live,
// so resolution fields are not stamped.
func (s *AlertService) Escalate(ctx context.Context, alertID, analyst string, notes *string) (repository.Alert, error) {
	return s.transition(ctx, alertID, repository.AlertEscalated, analyst, notes, repository.AuditAlertEscalated)
}

func (s *AlertService) transition(ctx context.Context, alertID, to, analyst string, notes *string, auditAction string) (repository.Alert, error) {
	a, err := s.Alerts.Get(ctx, alertID)
	if err != nil {
		return repository.Alert{}, err
	}
	from := a.Status
	if !transitionAllowed(from, to) {
		return repository.Alert{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	a.Status = to
	if notes != nil {
		a.Notes = notes
	}
	switch to {
	case repository.AlertReviewing:
		a.AssignedTo = &analyst
	case repository.AlertResolved, repository.AlertFalsePositive:
		now := database.Now()
		a.ResolvedAt = &now
		a.ResolvedBy = &analyst
	case repository.AlertEscalated:
		// Escalation keeps the alert live and assigned; no resolution
		// stamp.
	}

	if err := s.Alerts.Update(ctx, a); err != nil {
		return repository.Alert{}, err
	}
	s.audit(ctx, auditAction, a.ID, &analyst, map[string]interface{}{
		"from": from,
		"to":   to,
	})
	logger.FromContext(ctx).Info().
		Str("alert_id", a.ID).
		Str("from", from).
		Str("to", to).
		Str("analyst", analyst).
		Msg("alert transition")
	return s.Alerts.Get(ctx, a.ID)
}

// Update writes the requested status directly, applying only the
// stamping rules. Unlike the dedicated lifecycle methods it performs
// no transition validation: API-style callers may set any status, and
// re-resolving an already resolved alert is an idempotent restamp.
func (s *AlertService) Update(ctx context.Context, alertID, status, analyst string, notes *string) (repository.Alert, error) {
	a, err := s.Alerts.Get(ctx, alertID)
	if err != nil {
		return repository.Alert{}, err
	}
	from := a.Status

	a.Status = status
	if notes != nil {
		a.Notes = notes
	}
	switch status {
	case repository.AlertReviewing:
		a.AssignedTo = &analyst
	case repository.AlertResolved, repository.AlertFalsePositive:
		now := database.Now()
		a.ResolvedAt = &now
		a.ResolvedBy = &analyst
	}

	if err := s.Alerts.Update(ctx, a); err != nil {
		return repository.Alert{}, err
	}
	s.audit(ctx, repository.AuditAlertUpdated, a.ID, &analyst, map[string]interface{}{
		"from": from,
		"to":   status,
	})
	return s.Alerts.Get(ctx, a.ID)
}

// Statistics returns the current counts per status bucket.
func (s *AlertService) Statistics(ctx context.Context) (repository.AlertStatistics, error) {
	return s.Alerts.CountByStatus(ctx)
}

// StaleOpen lists open alerts older than the cutoff, for escalation
// sweeps.
func (s *AlertService) StaleOpen(ctx context.Context, olderThan time.Duration) ([]repository.Alert, error) {
	alerts, err := s.Alerts.ListByStatus(ctx, repository.AlertOpen)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	var stale []repository.Alert
	for _, a := range alerts {
		if a.CreatedAt.Before(cutoff) {
			stale = append(stale, a)
		}
	}
	return stale, nil
}

func (s *AlertService) audit(ctx context.Context, action, alertID string, userID *string, meta map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	raw, _ := json.Marshal(meta)
	rt := "alert"
	if err := s.Audit.Insert(ctx, repository.AuditEvent{
		UserID:       userID,
		Action:       action,
		ResourceType: &rt,
		ResourceID:   &alertID,
		Metadata:     raw,
	}); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("audit write failed")
	}
}

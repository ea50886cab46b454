package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/logger"
	"github.com/jfields/txsentry/internal/money"
)

// Condition schemas, one per rule type. Unknown JSON keys are ignored;
// missing keys take the documented defaults so a rule row with an empty
// condition still evaluates.

// LargeTransactionCondition flags a single transaction far above the
// account's norm. When Threshold is set it is an absolute dollar cutoff;
// otherwise the cutoff is Multiplier times the account's average
// absolute amount over the lookback window.
type LargeTransactionCondition struct {
	Threshold    float64 `json:"threshold,omitempty"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	LookbackDays int     `json:"lookbackDays,omitempty"`
}

// VelocityCondition flags bursts: Count or more transactions inside a
// sliding window ending at the evaluated transaction.
type VelocityCondition struct {
	Count         int `json:"count,omitempty"`
	WindowMinutes int `json:"windowMinutes,omitempty"`
}

// StructuringCondition flags clusters of transactions kept just under a
// reporting threshold. A transaction matches when its absolute amount is
// strictly between threshold*(1-tolerance) and threshold.
type StructuringCondition struct {
	Threshold   float64 `json:"threshold,omitempty"`
	Tolerance   float64 `json:"tolerance,omitempty"`
	Count       int     `json:"count,omitempty"`
	WindowHours int     `json:"windowHours,omitempty"`
}

// UnusualPatternCondition flags amounts that deviate from the account's
// historical distribution by more than StdDevMultiplier population
// standard deviations.
type UnusualPatternCondition struct {
	StdDevMultiplier float64 `json:"stdDevMultiplier,omitempty"`
	LookbackDays     int     `json:"lookbackDays,omitempty"`
}

// Violation is one matched rule with the evidence the analyst sees in
// the alert.
type Violation struct {
	Rule    repository.Rule
	Context map[string]interface{}
}

// RuleEngine evaluates enabled detection rules against transactions and
// raises alerts through the alert service.
type RuleEngine struct {
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Rules        *repository.RuleRepo
	Alerts       *AlertService
}

// Evaluate checks one rule against one transaction. A nil Violation
// with nil error means the rule did not match. Rule types the engine
// does not implement are skipped, not errors, so adding a type to the
// schema does not break older workers.
func (e *RuleEngine) Evaluate(ctx context.Context, rule repository.Rule, t repository.Transaction) (*Violation, error) {
	switch rule.Type {
	case repository.RuleLargeTransaction:
		return e.evalLargeTransaction(ctx, rule, t)
	case repository.RuleVelocity:
		return e.evalVelocity(ctx, rule, t)
	case repository.RuleStructuring:
		return e.evalStructuring(ctx, rule, t)
	case repository.RuleUnusualPattern:
		return e.evalUnusualPattern(ctx, rule, t)
	default:
		logger.FromContext(ctx).Debug().Str("rule_type", rule.Type).Msg("unsupported rule type skipped")
		return nil, nil
	}
}

func (e *RuleEngine) evalLargeTransaction(ctx context.Context, rule repository.Rule, t repository.Transaction) (*Violation, error) {
	cond := LargeTransactionCondition{Multiplier: 3, LookbackDays: 30}
	if err := decodeCondition(rule, &cond); err != nil {
		return nil, err
	}

	absCents := money.Money(t.Amount).Abs().Cents()
	var thresholdCents int64
	var avgDollars float64

	if cond.Threshold > 0 {
		thresholdCents = money.ToCents(cond.Threshold)
	} else {
		since := t.Timestamp.AddDate(0, 0, -cond.LookbackDays)
		meanCents, ok, err := e.Transactions.AvgAbsAmountSince(ctx, t.AccountID, since)
		if err != nil {
			return nil, err
		}
		if !ok || meanCents <= 0 {
			return nil, nil
		}
		avgDollars = meanCents / 100
		thresholdCents = money.FromFloat(avgDollars).MulFloat(cond.Multiplier).Cents()
	}

	if absCents <= thresholdCents {
		return nil, nil
	}
	return &Violation{
		Rule: rule,
		Context: map[string]interface{}{
			"threshold":         money.FromCents(thresholdCents),
			"averageAmount":     money.Round(avgDollars),
			"multiplier":        cond.Multiplier,
			"transactionAmount": money.FromCents(absCents),
		},
	}, nil
}

func (e *RuleEngine) evalVelocity(ctx context.Context, rule repository.Rule, t repository.Transaction) (*Violation, error) {
	cond := VelocityCondition{Count: 10, WindowMinutes: 60}
	if err := decodeCondition(rule, &cond); err != nil {
		return nil, err
	}

	start := t.Timestamp.Add(-time.Duration(cond.WindowMinutes) * time.Minute)
	n, err := e.Transactions.CountInWindow(ctx, t.AccountID, start, t.Timestamp)
	if err != nil {
		return nil, err
	}
	if n < cond.Count {
		return nil, nil
	}
	return &Violation{
		Rule: rule,
		Context: map[string]interface{}{
			"transactionCount": n,
			"threshold":        cond.Count,
			"windowMinutes":    cond.WindowMinutes,
		},
	}, nil
}

func (e *RuleEngine) evalStructuring(ctx context.Context, rule repository.Rule, t repository.Transaction) (*Violation, error) {
	cond := StructuringCondition{Threshold: 10000, Tolerance: 0.1, Count: 3, WindowHours: 24}
	if err := decodeCondition(rule, &cond); err != nil {
		return nil, err
	}

	highCents := money.ToCents(cond.Threshold)
	lowCents := money.FromFloat(cond.Threshold).MulFloat(1 - cond.Tolerance).Cents()
	start := t.Timestamp.Add(-time.Duration(cond.WindowHours) * time.Hour)

	n, err := e.Transactions.CountAbsAmountBetween(ctx, t.AccountID, start, t.Timestamp, lowCents, highCents)
	if err != nil {
		return nil, err
	}
	if n < cond.Count {
		return nil, nil
	}
	return &Violation{
		Rule: rule,
		Context: map[string]interface{}{
			"matchingTransactions": n,
			"threshold":            cond.Threshold,
			"tolerance":            cond.Tolerance,
			"windowHours":          cond.WindowHours,
			"lowerBound":           money.FromCents(lowCents),
		},
	}, nil
}

func (e *RuleEngine) evalUnusualPattern(ctx context.Context, rule repository.Rule, t repository.Transaction) (*Violation, error) {
	cond := UnusualPatternCondition{StdDevMultiplier: 2.5, LookbackDays: 90}
	if err := decodeCondition(rule, &cond); err != nil {
		return nil, err
	}

	since := t.Timestamp.AddDate(0, 0, -cond.LookbackDays)
	stats, err := e.Transactions.AbsAmountStatsSince(ctx, t.AccountID, since)
	if err != nil {
		return nil, err
	}
	// Too little history, or no spread at all, and the statistic is
	// meaningless; stay silent rather than alert on noise.
	if stats.Count < 10 || stats.StdDev <= 0 {
		return nil, nil
	}

	// Upper tail only: amounts far below the historical mean are not
	// suspicious under this rule.
	absCents := float64(money.Money(t.Amount).Abs().Cents())
	thresholdCents := stats.Mean + stats.StdDev*cond.StdDevMultiplier
	if absCents <= thresholdCents {
		return nil, nil
	}
	deviations := (absCents - stats.Mean) / stats.StdDev
	return &Violation{
		Rule: rule,
		Context: map[string]interface{}{
			"transactionAmount": money.FromCents(int64(absCents)),
			"mean":              money.Round(stats.Mean / 100),
			"stdDev":            money.Round(stats.StdDev / 100),
			"deviations":        math.Round(deviations*100) / 100,
			"threshold":         money.Round(thresholdCents / 100),
		},
	}, nil
}

// EvaluateTransaction runs every enabled rule against one transaction
// and raises an alert per violation. An unknown transaction ID is a
// silent no-op: the job queue may deliver an evaluation for a row a
// concurrent import rolled back.
func (e *RuleEngine) EvaluateTransaction(ctx context.Context, transactionID string) error {
	log := logger.FromContext(ctx)

	t, err := e.Transactions.Get(ctx, transactionID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug().Str("transaction_id", transactionID).Msg("transaction vanished before evaluation")
		return nil
	}
	if err != nil {
		return err
	}

	account, err := e.Accounts.Get(ctx, t.AccountID)
	if err != nil {
		return err
	}

	rules, err := e.Rules.ListEnabled(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		v, err := e.Evaluate(ctx, rule, t)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if v == nil {
			continue
		}
		evidence, err := json.Marshal(v.Context)
		if err != nil {
			return err
		}
		if _, err := e.Alerts.Create(ctx, CreateAlertInput{
			UserID:        account.UserID,
			TransactionID: &t.ID,
			RuleID:        rule.ID,
			Context:       evidence,
		}); err != nil {
			return err
		}
		log.Info().
			Str("rule", rule.Name).
			Str("severity", rule.Severity).
			Str("transaction_id", t.ID).
			Msg("rule violation")
	}
	return nil
}

// RunRulesForAccount re-evaluates the account's last 24 hours of
// transactions, for use after rule changes or bulk imports. Returns the
// number of transactions evaluated.
func (e *RuleEngine) RunRulesForAccount(ctx context.Context, accountID string) (int, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	txs, err := e.Transactions.List(ctx, repository.TransactionFilters{AccountID: accountID, Since: since})
	if err != nil {
		return 0, err
	}
	for _, t := range txs {
		if err := e.EvaluateTransaction(ctx, t.ID); err != nil {
			return 0, err
		}
	}
	return len(txs), nil
}

func decodeCondition(rule repository.Rule, dst interface{}) error {
	if len(rule.Condition) == 0 {
		return nil
	}
	if err := json.Unmarshal(rule.Condition, dst); err != nil {
		return fmt.Errorf("decode %s condition: %w", rule.Type, err)
	}
	return nil
}

package repository

import (
	"encoding/json"
	"time"
)

// Account represents an account row. Balance is integer cents.
type Account struct {
	ID        string
	UserID    string
	Name      string
	Currency  string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category represents a spending category. System categories are seeded
// at bootstrap and cannot be deleted.
type Category struct {
	ID          string
	Name        string
	Description *string
	Icon        *string
	Color       *string
	ParentID    *string
	IsSystem    bool
	CreatedAt   time.Time
}

// Match types for categorization rule patterns.
const (
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
	MatchEndsWith   = "ends_with"
	MatchExact      = "exact"
	MatchRegex      = "regex"
)

// CategorizationRule maps a description/merchant pattern to a category.
// Rules are evaluated in descending priority order, first match wins;
// ties are broken by creation order.
type CategorizationRule struct {
	ID            string
	CategoryID    string
	Pattern       string
	MatchType     string
	CaseSensitive bool
	Priority      int
	Enabled       bool
	CreatedAt     time.Time
}

// Transaction sources.
const (
	SourceUpload    = "upload"
	SourceManual    = "manual"
	SourceAPI       = "api"
	SourceSynthetic = "synthetic"
)

// Transaction represents a ledger row. Amount is integer cents, negative
// for debits. IdempotencyKey uniquely identifies the row; re-submitting
// the same key returns the existing row instead of erroring.
type Transaction struct {
	ID               string
	AccountID        string
	Timestamp        time.Time
	Description      string
	Amount           int64
	Currency         string
	Merchant         *string
	MerchantCategory *string
	CategoryID       *string
	Source           string
	ReferenceNumber  *string
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Detection rule types.
const (
	RuleLargeTransaction   = "large_transaction"
	RuleVelocity           = "velocity"
	RuleStructuring        = "structuring"
	RuleUnusualPattern     = "unusual_pattern"
	RuleForeignTransaction = "foreign_transaction"
	RuleCustom             = "custom"
)

// Detection rule severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Rule is a detection rule. Condition is a JSON document whose schema is
// keyed by Type; the engine decodes it into a typed condition struct.
type Rule struct {
	ID          string
	Name        string
	Description string
	Type        string
	Severity    string
	Condition   json.RawMessage
	Enabled     bool
	AutoResolve bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Alert statuses.
const (
	AlertOpen          = "open"
	AlertReviewing     = "reviewing"
	AlertResolved      = "resolved"
	AlertFalsePositive = "false_positive"
	AlertEscalated     = "escalated"
)

// Alert is an analyst-reviewable rule violation. RuleID and
// TransactionID never change after creation.
type Alert struct {
	ID            string
	UserID        string
	TransactionID *string
	RuleID        string
	Status        string
	Notes         *string
	Context       json.RawMessage
	AssignedTo    *string
	ResolvedAt    *time.Time
	ResolvedBy    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AlertStatistics is a point-in-time bucket count. The buckets sum to
// Total.
type AlertStatistics struct {
	Total         int
	Open          int
	Reviewing     int
	Resolved      int
	FalsePositive int
	Escalated     int
}

// AuditEvent is a fire-and-forget audit sink record.
type AuditEvent struct {
	ID           string
	UserID       *string
	Action       string
	ResourceType *string
	ResourceID   *string
	Metadata     json.RawMessage
	CreatedAt    time.Time
}

// AmountStats is an aggregate over |amount| for a population of
// transactions. Mean and StdDev are in cents; StdDev is the population
// standard deviation (denominator N).
type AmountStats struct {
	Count  int
	Mean   float64
	StdDev float64
}

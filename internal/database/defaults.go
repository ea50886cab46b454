package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jfields/txsentry/internal/database/repository"
)

type seedCategory struct {
	name        string
	description string
}

var defaultCategories = []seedCategory{
	{"Income", "Salary, freelance, and other income"},
	{"Food & Dining", "Restaurants, groceries, and food delivery"},
	{"Transportation", "Public transport, gas, parking"},
	{"Shopping", "Retail, online shopping, clothing"},
	{"Entertainment", "Movies, games, streaming services"},
	{"Bills & Utilities", "Rent, electricity, internet, phone"},
	{"Healthcare", "Medical, dental, pharmacy"},
	{"Travel", "Flights, hotels, vacation expenses"},
	{"Fees & Charges", "Bank fees, service charges"},
	{"Other", "Uncategorized transactions"},
}

type seedCatRule struct {
	category string
	pattern  string
	priority int
}

var defaultCatRules = []seedCatRule{
	{"Income", "salary", 10},
	{"Income", "payroll", 10},
	{"Income", "dividend", 9},
	{"Food & Dining", "starbucks", 8},
	{"Food & Dining", "uber eats", 8},
	{"Food & Dining", "restaurant", 7},
	{"Food & Dining", "grocery", 7},
	{"Transportation", "uber", 8},
	{"Transportation", "lyft", 8},
	{"Transportation", "parking", 7},
	{"Transportation", "gas station", 7},
	{"Shopping", "amazon", 8},
	{"Shopping", "walmart", 7},
	{"Entertainment", "netflix", 9},
	{"Entertainment", "spotify", 9},
	{"Bills & Utilities", "rent", 9},
	{"Bills & Utilities", "electric", 8},
	{"Bills & Utilities", "internet", 8},
	{"Healthcare", "pharmacy", 8},
	{"Healthcare", "hospital", 8},
	{"Travel", "airbnb", 9},
	{"Travel", "hotel", 8},
	{"Travel", "airline", 8},
}

type seedRule struct {
	name        string
	description string
	ruleType    string
	severity    string
	condition   interface{}
}

// SeedDefaults ensures baseline system categories, categorization rules
// and detection rules exist. It is idempotent and safe to run on every
// startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	catRepo := repository.NewCategoryRepo(db)
	catRuleRepo := repository.NewCategorizationRuleRepo(db)
	ruleRepo := repository.NewRuleRepo(db)

	catIDs := make(map[string]string, len(defaultCategories))
	for _, sc := range defaultCategories {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("category:"+sc.name)).String()
		desc := sc.description
		if err := catRepo.Upsert(ctx, repository.Category{
			ID:          id,
			Name:        sc.name,
			Description: &desc,
			IsSystem:    true,
		}); err != nil {
			return err
		}
		catIDs[sc.name] = id
	}

	existing, err := catRuleRepo.ListEnabled(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, sr := range defaultCatRules {
			if err := catRuleRepo.Add(ctx, repository.CategorizationRule{
				ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("catrule:"+sr.category+":"+sr.pattern)).String(),
				CategoryID: catIDs[sr.category],
				Pattern:    sr.pattern,
				MatchType:  repository.MatchContains,
				Priority:   sr.priority,
				Enabled:    true,
			}); err != nil {
				return err
			}
		}
	}

	detectionRules := []seedRule{
		{
			name:        "Large Transaction Alert",
			description: "Triggers when a single transaction exceeds 3x the account average",
			ruleType:    repository.RuleLargeTransaction,
			severity:    repository.SeverityHigh,
			condition:   map[string]interface{}{"multiplier": 3, "lookbackDays": 30},
		},
		{
			name:        "High Velocity - Multiple Transactions",
			description: "Triggers when more than 10 transactions occur within 1 hour",
			ruleType:    repository.RuleVelocity,
			severity:    repository.SeverityMedium,
			condition:   map[string]interface{}{"count": 10, "windowMinutes": 60},
		},
		{
			name:        "Potential Structuring Pattern",
			description: "Detects multiple transactions just below the reporting threshold",
			ruleType:    repository.RuleStructuring,
			severity:    repository.SeverityCritical,
			condition:   map[string]interface{}{"threshold": 10000, "tolerance": 0.1, "count": 3, "windowHours": 24},
		},
		{
			name:        "Unusual Spending Pattern",
			description: "Detects significant deviation from normal spending patterns",
			ruleType:    repository.RuleUnusualPattern,
			severity:    repository.SeverityMedium,
			condition:   map[string]interface{}{"stdDevMultiplier": 2.5, "lookbackDays": 90},
		},
	}
	for _, sr := range detectionRules {
		if _, err := ruleRepo.GetByName(ctx, sr.name); err == nil {
			continue
		}
		cond, err := json.Marshal(sr.condition)
		if err != nil {
			return err
		}
		if err := ruleRepo.Create(ctx, repository.Rule{
			ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte("rule:"+sr.name)).String(),
			Name:        sr.name,
			Description: sr.description,
			Type:        sr.ruleType,
			Severity:    sr.severity,
			Condition:   cond,
			Enabled:     true,
		}); err != nil {
			return err
		}
	}
	return nil
}

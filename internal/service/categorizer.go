// Package service holds the core pipeline logic: categorization,
// streaming ingestion, the detection rule engine and the alert
// lifecycle. Everything here is framework-agnostic and driven by the
// CLI or the job workers.
package service

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/logger"
)

// CategorizerService assigns categories to transactions by matching
// prioritized patterns against description and merchant.
type CategorizerService struct {
	Transactions *repository.TransactionRepo
	Rules        *repository.CategorizationRuleRepo
	Categories   *repository.CategoryRepo

	mu      sync.Mutex
	regexes map[string]*regexp.Regexp // keyed by rule ID
}

// Match scans rules in descending priority order and returns the
// category ID of the first rule whose pattern matches, or nil. Rules
// must already be sorted (ListEnabled returns them sorted); ties keep
// insertion order so results are deterministic when priorities collide.
func (s *CategorizerService) Match(ctx context.Context, description, merchant string, rules []repository.CategorizationRule) *string {
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}

		haystack := description + " " + merchant
		pattern := rule.Pattern
		if !rule.CaseSensitive {
			haystack = strings.ToLower(haystack)
			pattern = strings.ToLower(pattern)
		}

		var matched bool
		switch rule.MatchType {
		case repository.MatchContains:
			matched = strings.Contains(haystack, pattern)
		case repository.MatchStartsWith:
			matched = strings.HasPrefix(haystack, pattern)
		case repository.MatchEndsWith:
			matched = strings.HasSuffix(haystack, pattern)
		case repository.MatchExact:
			matched = haystack == pattern
		case repository.MatchRegex:
			re, err := s.compile(rule)
			if err != nil {
				logger.FromContext(ctx).Warn().
					Str("rule_id", rule.ID).
					Str("pattern", rule.Pattern).
					Err(err).
					Msg("skipping malformed regex rule")
				continue
			}
			matched = re.MatchString(description + " " + merchant)
		}

		if matched {
			id := rule.CategoryID
			return &id
		}
	}
	return nil
}

// CategorizeTransaction matches and stores a category for a single
// transaction. Already-categorized transactions are left alone.
func (s *CategorizerService) CategorizeTransaction(ctx context.Context, id string) error {
	tx, err := s.Transactions.Get(ctx, id)
	if err != nil {
		return err
	}
	if tx.CategoryID != nil {
		return nil
	}
	rules, err := s.Rules.ListEnabled(ctx)
	if err != nil {
		return err
	}
	merchant := ""
	if tx.Merchant != nil {
		merchant = *tx.Merchant
	}
	catID := s.Match(ctx, tx.Description, merchant, rules)
	if catID == nil {
		return nil
	}
	return s.Transactions.UpdateCategory(ctx, tx.ID, catID)
}

// CategorizeBatch applies the single-item algorithm to each transaction
// independently and returns the matched category IDs in input order.
// There is no cross-item state, so callers may shard the input across
// goroutines and merge by index.
func (s *CategorizerService) CategorizeBatch(ctx context.Context, txs []repository.Transaction, rules []repository.CategorizationRule) []*string {
	out := make([]*string, len(txs))
	for i, tx := range txs {
		merchant := ""
		if tx.Merchant != nil {
			merchant = *tx.Merchant
		}
		out[i] = s.Match(ctx, tx.Description, merchant, rules)
	}
	return out
}

// CategorizeUncategorized sweeps uncategorized transactions, optionally
// scoped to one account, and reports how many were categorized.
func (s *CategorizerService) CategorizeUncategorized(ctx context.Context, accountID string) (int, error) {
	rules, err := s.Rules.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}
	txs, err := s.Transactions.List(ctx, repository.TransactionFilters{
		AccountID:     accountID,
		Uncategorized: true,
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, tx := range txs {
		merchant := ""
		if tx.Merchant != nil {
			merchant = *tx.Merchant
		}
		catID := s.Match(ctx, tx.Description, merchant, rules)
		if catID == nil {
			continue
		}
		if err := s.Transactions.UpdateCategory(ctx, tx.ID, catID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// compile memoises compiled regexes per rule so a sweep over thousands
// of transactions compiles each pattern once.
func (s *CategorizerService) compile(rule *repository.CategorizationRule) (*regexp.Regexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regexes == nil {
		s.regexes = make(map[string]*regexp.Regexp)
	}
	if re, ok := s.regexes[rule.ID]; ok {
		return re, nil
	}
	pattern := rule.Pattern
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	s.regexes[rule.ID] = re
	return re, nil
}

package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ColumnMapping holds the zero-based index of each recognized column in
// a CSV header. -1 means the column is absent.
type ColumnMapping struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
	Currency    int `json:"currency"`
	Merchant    int `json:"merchant"`
	Reference   int `json:"reference"`
}

var columnAliases = map[string][]string{
	"date":        {"date", "timestamp", "transaction date", "transaction_date", "posted date"},
	"description": {"description", "desc", "narrative", "details", "transaction description"},
	"amount":      {"amount", "value", "transaction amount", "debit", "credit"},
	"currency":    {"currency", "ccy", "curr"},
	"merchant":    {"merchant", "vendor", "payee", "merchant name"},
	"reference":   {"reference", "ref", "reference number", "transaction id", "transaction_id"},
}

// DetectColumns maps header names to known columns. Matching is
// case-insensitive: first an exact alias match, then a substring match,
// then a fuzzy match within edit distance 2 to absorb minor header
// typos ("descripton"). Each source column is claimed at most once.
func DetectColumns(header []string) ColumnMapping {
	m := ColumnMapping{Date: -1, Description: -1, Amount: -1, Currency: -1, Merchant: -1, Reference: -1}
	claimed := make(map[int]bool, len(header))

	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	assign := func(field string, idx int) {
		claimed[idx] = true
		switch field {
		case "date":
			m.Date = idx
		case "description":
			m.Description = idx
		case "amount":
			m.Amount = idx
		case "currency":
			m.Currency = idx
		case "merchant":
			m.Merchant = idx
		case "reference":
			m.Reference = idx
		}
	}

	match := func(field string, accept func(header, alias string) bool) int {
		for _, alias := range columnAliases[field] {
			for i, h := range normalized {
				if claimed[i] || h == "" {
					continue
				}
				if accept(h, alias) {
					return i
				}
			}
		}
		return -1
	}

	// Fixed field order so "transaction id" claims its column before the
	// looser substring pass for another field can steal it.
	fields := []string{"date", "description", "amount", "currency", "merchant", "reference"}

	for _, f := range fields {
		if i := match(f, func(h, a string) bool { return h == a }); i >= 0 {
			assign(f, i)
		}
	}
	for _, f := range fields {
		if fieldIndex(m, f) >= 0 {
			continue
		}
		if i := match(f, func(h, a string) bool { return strings.Contains(h, a) }); i >= 0 {
			assign(f, i)
		}
	}
	for _, f := range fields {
		if fieldIndex(m, f) >= 0 {
			continue
		}
		if i := match(f, func(h, a string) bool { return levenshtein.ComputeDistance(h, a) <= 2 }); i >= 0 {
			assign(f, i)
		}
	}
	return m
}

// ParseColumnMapping builds a mapping from explicit "field=index" pairs
// (e.g. "date=0", "amount=3"). Date, description and amount are required;
// the rest default to absent.
func ParseColumnMapping(pairs []string) (*ColumnMapping, error) {
	m := ColumnMapping{Date: -1, Description: -1, Amount: -1, Currency: -1, Merchant: -1, Reference: -1}
	for _, p := range pairs {
		field, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid mapping %q, want field=index", p)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid column index in %q", p)
		}
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "date":
			m.Date = idx
		case "description":
			m.Description = idx
		case "amount":
			m.Amount = idx
		case "currency":
			m.Currency = idx
		case "merchant":
			m.Merchant = idx
		case "reference":
			m.Reference = idx
		default:
			return nil, fmt.Errorf("unknown column field %q", field)
		}
	}
	if m.Date < 0 || m.Description < 0 || m.Amount < 0 {
		return nil, fmt.Errorf("mapping must include date, description and amount")
	}
	return &m, nil
}

func fieldIndex(m ColumnMapping, field string) int {
	switch field {
	case "date":
		return m.Date
	case "description":
		return m.Description
	case "amount":
		return m.Amount
	case "currency":
		return m.Currency
	case "merchant":
		return m.Merchant
	case "reference":
		return m.Reference
	}
	return -1
}

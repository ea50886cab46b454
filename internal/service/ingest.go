package service

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/logger"
	"github.com/jfields/txsentry/internal/money"
)

// DefaultBatchSize is how many rows are buffered before a bulk insert.
// Memory use is O(batch), never O(file).
const DefaultBatchSize = 100

// Parse failure conditions surfaced per row.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid or missing date")
	ErrMissingDescription = errors.New("description is required")
)

// RowError records a single failed row without aborting the stream.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// ImportResult is the summary envelope returned even on partial failure.
type ImportResult struct {
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Total      int        `json:"total"`
	Errors     []RowError `json:"errors"`
}

// ImportProgress is reported at batch granularity so long imports can
// be polled.
type ImportProgress struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// IngestService streams a delimited transaction feed into the ledger
// with idempotent conflict handling.
type IngestService struct {
	DB           *sql.DB
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Audit        *repository.AuditRepo
	Categorizer  *CategorizerService

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
	// Progress, when set, is invoked after each durable batch.
	Progress func(ImportProgress)
}

// Import parses r as a header-first CSV stream and inserts rows in
// batches with insert-or-ignore semantics against the idempotency key
// and reference number uniques. Duplicate rows are skipped silently;
// malformed rows are collected as errors. The account balance is
// adjusted once, at the end, by the signed sum of the rows actually
// inserted, so re-running the same import neither duplicates rows nor
// re-applies the delta.
func (s *IngestService) Import(ctx context.Context, r io.Reader, accountID string, mapping *ColumnMapping) (ImportResult, error) {
	log := logger.FromContext(ctx)
	res := ImportResult{}

	if _, err := s.Accounts.Get(ctx, accountID); err != nil {
		return res, err
	}

	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err == io.EOF {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	if mapping == nil {
		m := DetectColumns(header)
		mapping = &m
	}

	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		batch      []repository.Transaction
		deltaCents int64
		row        int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.insertBatch(ctx, batch)
		if err != nil {
			return err
		}
		for _, t := range inserted {
			deltaCents += t.Amount
		}
		res.Successful += len(inserted)
		skipped := len(batch) - len(inserted)
		if skipped > 0 {
			log.Debug().Int("skipped", skipped).Msg("duplicate rows ignored")
		}
		batch = batch[:0]
		s.categorizeAsync(ctx, inserted)
		if s.Progress != nil {
			s.Progress(ImportProgress{Processed: row, Successful: res.Successful, Failed: res.Failed})
		}
		return nil
	}

	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			res.Total++
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: row, Err: err.Error()})
			continue
		}
		res.Total++

		t, err := mapRow(rec, header, accountID, *mapping)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: row, Err: err.Error()})
			continue
		}
		batch = append(batch, t)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}

	if res.Successful > 0 && deltaCents != 0 {
		if err := s.Accounts.AdjustBalance(ctx, accountID, deltaCents); err != nil {
			return res, err
		}
	}

	s.auditImport(ctx, accountID, res)
	log.Info().
		Str("account_id", accountID).
		Int("successful", res.Successful).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Msg("import complete")
	return res, nil
}

// insertBatch writes one batch in a single transaction and returns the
// rows that were actually inserted (duplicates drop out here).
func (s *IngestService) insertBatch(ctx context.Context, batch []repository.Transaction) ([]repository.Transaction, error) {
	var inserted []repository.Transaction
	err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		for _, t := range batch {
			ok, err := s.Transactions.InsertIgnore(ctx, tx, t)
			if err != nil {
				return err
			}
			if ok {
				inserted = append(inserted, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// categorizeAsync fans categorization out per inserted row and drains
// the goroutines before returning, so the work is bounded per batch and
// deterministic for callers. Failures are logged, never fatal: a
// miscategorized row does not fail an import.
func (s *IngestService) categorizeAsync(ctx context.Context, inserted []repository.Transaction) {
	if s.Categorizer == nil || len(inserted) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	var wg sync.WaitGroup
	for _, t := range inserted {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Categorizer.CategorizeTransaction(ctx, id); err != nil {
				log.Warn().Str("transaction_id", id).Err(err).Msg("categorization failed")
			}
		}(t.ID)
	}
	wg.Wait()
}

func (s *IngestService) auditImport(ctx context.Context, accountID string, res ImportResult) {
	if s.Audit == nil {
		return
	}
	meta, _ := json.Marshal(map[string]interface{}{
		"accountId":  accountID,
		"successful": res.Successful,
		"failed":     res.Failed,
		"total":      res.Total,
	})
	rt := "transaction"
	if err := s.Audit.Insert(ctx, repository.AuditEvent{
		Action:       repository.AuditTransactionImported,
		ResourceType: &rt,
		ResourceID:   &accountID,
		Metadata:     meta,
	}); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("audit write failed")
	}
}

// mapRow converts a raw CSV record into a transaction using the column
// mapping. The idempotency key is the reference number when present,
// else a deterministic UUID of the row's identifying fields, so
// re-importing the same file maps to the same keys.
func mapRow(rec, header []string, accountID string, m ColumnMapping) (repository.Transaction, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	desc := field(m.Description)
	if desc == "" {
		return repository.Transaction{}, ErrMissingDescription
	}
	ts, err := ParseDate(field(m.Date))
	if err != nil {
		return repository.Transaction{}, err
	}
	amountCents, err := ParseAmount(field(m.Amount))
	if err != nil {
		return repository.Transaction{}, err
	}

	currency := field(m.Currency)
	if currency == "" {
		currency = "USD"
	}

	t := repository.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Timestamp:   ts,
		Description: desc,
		Amount:      amountCents,
		Currency:    currency,
		Source:      repository.SourceUpload,
	}
	if merchant := field(m.Merchant); merchant != "" {
		t.Merchant = &merchant
	}
	if ref := field(m.Reference); ref != "" {
		t.ReferenceNumber = &ref
		t.IdempotencyKey = ref
	} else {
		seed := strings.Join([]string{accountID, ts.Format(time.RFC3339), fmt.Sprintf("%d", amountCents), desc}, "|")
		t.IdempotencyKey = uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
	}
	return t, nil
}

// ParseAmount parses a monetary string into signed cents. Currency
// symbols, grouping commas and whitespace are stripped; accounting
// parentheses mean negative: "(120.00)" is -12000 cents.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '$', '£', '€', '¥', ',', ' ', '\t':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	m, err := money.Parse(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		m = -m
	}
	return m.Cents(), nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate accepts ISO-8601 and common locale date strings.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

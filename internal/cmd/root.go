package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/config"
	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/jobs"
	"github.com/jfields/txsentry/internal/logger"
	"github.com/jfields/txsentry/internal/service"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "txsentry",
	Short: "Transaction screening and fraud detection engine",
	Long: `txsentry ingests transaction feeds, categorizes them, and screens
them against configurable detection rules (large transactions, velocity
bursts, structuring patterns, statistical outliers). Violations become
alerts that move through an analyst review lifecycle.

Example usage:
  txsentry seed
  txsentry import --account <id> --file transactions.csv
  txsentry worker`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.SilenceUsage = true
}

// app bundles the wired services a command needs.
type app struct {
	cfg    config.Config
	db     *sql.DB
	txns   *repository.TransactionRepo
	ingest *service.IngestService
	engine *service.RuleEngine
	alerts *service.AlertService
	disp   *jobs.Dispatcher
}

// setup loads config, opens and migrates the database, and wires the
// service graph. The returned context carries the logger.
func setup(ctx context.Context) (context.Context, *app, error) {
	cfg, err := config.Load()
	if err != nil {
		return ctx, nil, err
	}

	log := logger.New()
	if verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}
	ctx = logger.WithContext(ctx, log)

	if err := ensureDir(cfg.Database.Path); err != nil {
		return ctx, nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return ctx, nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return ctx, nil, fmt.Errorf("migrate: %w", err)
	}

	txRepo := repository.NewTransactionRepo(db)
	acctRepo := repository.NewAccountRepo(db)
	catRepo := repository.NewCategoryRepo(db)
	catRuleRepo := repository.NewCategorizationRuleRepo(db)
	ruleRepo := repository.NewRuleRepo(db)
	alertRepo := repository.NewAlertRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	categorizer := &service.CategorizerService{
		Transactions: txRepo,
		Rules:        catRuleRepo,
		Categories:   catRepo,
	}
	alerts := &service.AlertService{
		Alerts: alertRepo,
		Rules:  ruleRepo,
		Audit:  auditRepo,
	}
	engine := &service.RuleEngine{
		Transactions: txRepo,
		Accounts:     acctRepo,
		Rules:        ruleRepo,
		Alerts:       alerts,
	}
	ingest := &service.IngestService{
		DB:           db,
		Transactions: txRepo,
		Accounts:     acctRepo,
		Audit:        auditRepo,
		Categorizer:  categorizer,
		BatchSize:    cfg.Ingest.BatchSize,
	}

	a := &app{
		cfg:    cfg,
		db:     db,
		txns:   txRepo,
		ingest: ingest,
		engine: engine,
		alerts: alerts,
		disp:   &jobs.Dispatcher{Ingest: ingest, Engine: engine},
	}
	return ctx, a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

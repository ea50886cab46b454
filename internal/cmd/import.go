package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/service"
)

var (
	importAccountID string
	importFile      string
	importEvaluate  bool
	importMapping   []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV transaction feed into an account",
	Long: `Import reads a header-first CSV file, auto-detects its columns, and
loads the rows into the account in idempotent batches. Re-importing the
same file is safe: duplicate rows are skipped and the balance delta is
not re-applied.

Examples:
  txsentry import --account 7f3a... --file statements/march.csv
  txsentry import --account 7f3a... --file feed.csv --evaluate`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importAccountID, "account", "", "target account ID (required)")
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the CSV file (required)")
	importCmd.Flags().BoolVar(&importEvaluate, "evaluate", false, "run detection rules over the account after import")
	importCmd.Flags().StringSliceVar(&importMapping, "mapping", nil, "explicit column mapping as field=index pairs, e.g. date=0,description=1,amount=2 (skips auto-detection)")

	importCmd.MarkFlagRequired("account")
	importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var mapping *service.ColumnMapping
	if len(importMapping) > 0 {
		mapping, err = service.ParseColumnMapping(importMapping)
		if err != nil {
			return err
		}
	}

	f, err := os.Open(importFile)
	if err != nil {
		return err
	}
	defer f.Close()

	a.ingest.Progress = func(p service.ImportProgress) {
		fmt.Printf("\rprocessed %d (ok %d, failed %d)", p.Processed, p.Successful, p.Failed)
	}

	res, err := a.ingest.Import(ctx, f, importAccountID, mapping)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("imported %d of %d rows (%d failed)\n", res.Successful, res.Total, res.Failed)
	for _, re := range res.Errors {
		fmt.Printf("  row %d: %s\n", re.Row, re.Err)
	}

	if importEvaluate {
		n, err := a.engine.RunRulesForAccount(ctx, importAccountID)
		if err != nil {
			return err
		}
		fmt.Printf("evaluated %d recent transactions\n", n)
	}
	return nil
}

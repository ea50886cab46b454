package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	evalAccountID     string
	evalTransactionID string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run detection rules against a transaction or an account",
	Long: `Evaluate runs every enabled detection rule. With --transaction a
single row is screened; with --account the account's last 24 hours are
re-screened. Matches create open alerts.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalAccountID, "account", "", "re-evaluate this account's recent transactions")
	evaluateCmd.Flags().StringVar(&evalTransactionID, "transaction", "", "evaluate a single transaction")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if (evalAccountID == "") == (evalTransactionID == "") {
		return errors.New("exactly one of --account or --transaction is required")
	}

	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if evalTransactionID != "" {
		if err := a.engine.EvaluateTransaction(ctx, evalTransactionID); err != nil {
			return err
		}
		fmt.Println("transaction evaluated")
		return nil
	}

	n, err := a.engine.RunRulesForAccount(ctx, evalAccountID)
	if err != nil {
		return err
	}
	fmt.Printf("evaluated %d transactions\n", n)
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/database/repository"
	"github.com/jfields/txsentry/internal/money"
)

var (
	statsAccountID string
	statsDays      int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transaction totals for an account",
	Long: `Stats prints credit and debit totals, net flow, and the average
transaction amount for an account, optionally limited to the last N days.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsAccountID, "account", "", "account ID (required)")
	statsCmd.Flags().IntVar(&statsDays, "days", 0, "limit to the last N days (0 = all history)")

	statsCmd.MarkFlagRequired("account")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.engine.Accounts.Get(ctx, statsAccountID)
	if err != nil {
		return err
	}

	var since time.Time
	if statsDays > 0 {
		since = time.Now().UTC().AddDate(0, 0, -statsDays)
	}

	s, err := a.txns.SummaryByAccount(ctx, statsAccountID, since)
	if err != nil {
		return err
	}

	fmt.Printf("account:      %s (%s)\n", acct.Name, acct.Currency)
	fmt.Printf("transactions: %d\n", s.Count)
	fmt.Printf("total credit: %s\n", money.Money(s.TotalCredit))
	fmt.Printf("total debit:  %s\n", money.Money(s.TotalDebit))
	fmt.Printf("net:          %s\n", money.Money(s.Net))
	fmt.Printf("average:      %s\n", money.Money(s.Average))
	fmt.Printf("balance:      %s\n", money.Money(acct.Balance))

	totals, err := a.txns.TotalsByCategory(ctx, statsAccountID, since)
	if err != nil {
		return err
	}
	if len(totals) > 0 {
		fmt.Println("\nby category:")
		cats := repository.NewCategoryRepo(a.db)
		for _, ct := range totals {
			name := "(uncategorized)"
			if ct.CategoryID != nil {
				if c, err := cats.Get(ctx, *ct.CategoryID); err == nil {
					name = c.Name
				} else {
					name = *ct.CategoryID
				}
			}
			fmt.Printf("  %-20s %4d  %s\n", name, ct.Count, money.Money(ct.Total))
		}
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/database"
	"github.com/jfields/txsentry/internal/database/repository"
)

var (
	seedAccountName string
	seedUserID      string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply migrations and seed baseline categories and detection rules",
	Long: `Seed is idempotent: system categories, categorization rules and the
default detection rules are created only if missing. With --account it
also creates a demo account to import into.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedAccountName, "account", "", "also create an account with this name")
	seedCmd.Flags().StringVar(&seedUserID, "user", "demo", "owner user ID for --account")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := database.SeedDefaults(ctx, a.db); err != nil {
		return err
	}
	fmt.Println("defaults seeded")

	if seedAccountName != "" {
		acct := repository.Account{
			ID:       uuid.NewString(),
			UserID:   seedUserID,
			Name:     seedAccountName,
			Currency: a.cfg.Ingest.DefaultCurrency,
		}
		repo := repository.NewAccountRepo(a.db)
		if err := repo.Create(ctx, acct); err != nil {
			return err
		}
		fmt.Printf("account created: %s\n", acct.ID)
	}
	return nil
}

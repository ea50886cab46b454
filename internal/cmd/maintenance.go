package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/service"
)

var maintenanceConfirm bool

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Database maintenance operations",
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute-balances",
	Short: "Rewrite account balances from transaction sums",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		svc := &service.MaintenanceService{DB: a.db}
		n, err := svc.RecomputeBalances(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("recomputed %d account balances\n", n)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all data, keeping the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !maintenanceConfirm {
			return errors.New("refusing to wipe data without --yes")
		}
		ctx, a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		svc := &service.MaintenanceService{DB: a.db}
		if err := svc.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("all data deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
	maintenanceCmd.AddCommand(recomputeCmd)
	maintenanceCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&maintenanceConfirm, "yes", false, "confirm deletion")
}

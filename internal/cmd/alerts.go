package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/database/repository"
)

var alertsStatus string

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List alerts and show statistics",
	RunE:  runAlerts,
}

var alertsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert counts per status",
	RunE:  runAlertStats,
}

var (
	alertResolveNotes string
	alertAnalyst      string
)

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertResolve,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsStatsCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	alertsCmd.Flags().StringVar(&alertsStatus, "status", repository.AlertOpen, "filter by status")
	alertsResolveCmd.Flags().StringVar(&alertAnalyst, "analyst", "", "resolving analyst (required)")
	alertsResolveCmd.Flags().StringVar(&alertResolveNotes, "notes", "", "resolution notes")
	alertsResolveCmd.MarkFlagRequired("analyst")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	repo := repository.NewAlertRepo(a.db)
	alerts, err := repo.ListByStatus(ctx, alertsStatus)
	if err != nil {
		return err
	}
	for _, al := range alerts {
		tx := "-"
		if al.TransactionID != nil {
			tx = *al.TransactionID
		}
		fmt.Printf("%s  %-14s  rule=%s  tx=%s  %s\n",
			al.ID, al.Status, al.RuleID, tx, al.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d alerts\n", len(alerts))
	return nil
}

func runAlertStats(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.alerts.Statistics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total          %d\n", stats.Total)
	fmt.Printf("open           %d\n", stats.Open)
	fmt.Printf("reviewing      %d\n", stats.Reviewing)
	fmt.Printf("resolved       %d\n", stats.Resolved)
	fmt.Printf("false_positive %d\n", stats.FalsePositive)
	fmt.Printf("escalated      %d\n", stats.Escalated)
	return nil
}

func runAlertResolve(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var notes *string
	if alertResolveNotes != "" {
		notes = &alertResolveNotes
	}
	al, err := a.alerts.Resolve(ctx, args[0], alertAnalyst, notes)
	if err != nil {
		return err
	}
	fmt.Printf("alert %s resolved by %s\n", al.ID, alertAnalyst)
	return nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfields/txsentry/internal/database/repository"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	RunE:  runRulesList,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a detection rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(cmd, args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a detection rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(cmd, args[0], false) },
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a detection rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleDelete,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	rules, err := repository.NewRuleRepo(a.db).List(ctx)
	if err != nil {
		return err
	}
	for _, r := range rules {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-18s %-8s %-9s %s\n", r.ID, r.Type, r.Severity, state, r.Name)
	}
	fmt.Printf("%d rules\n", len(rules))
	return nil
}

func setRuleEnabled(cmd *cobra.Command, id string, enabled bool) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	repo := repository.NewRuleRepo(a.db)
	if err := repo.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}
	auditRule(ctx, a, repository.AuditRuleUpdated, id, map[string]interface{}{"enabled": enabled})
	fmt.Printf("rule %s enabled=%v\n", id, enabled)
	return nil
}

func runRuleDelete(cmd *cobra.Command, args []string) error {
	ctx, a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	repo := repository.NewRuleRepo(a.db)
	if err := repo.Delete(ctx, args[0]); err != nil {
		return err
	}
	auditRule(ctx, a, repository.AuditRuleDeleted, args[0], nil)
	fmt.Printf("rule %s deleted\n", args[0])
	return nil
}

func auditRule(ctx context.Context, a *app, action, ruleID string, meta map[string]interface{}) {
	raw, _ := json.Marshal(meta)
	rt := "rule"
	_ = repository.NewAuditRepo(a.db).Insert(ctx, repository.AuditEvent{
		Action:       action,
		ResourceType: &rt,
		ResourceID:   &ruleID,
		Metadata:     raw,
	})
}

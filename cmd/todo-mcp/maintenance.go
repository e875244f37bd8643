package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/todo-mcp/internal/activity"
	"github.com/vthunder/todo-mcp/internal/health"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped backup next to the store file",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Replace the store with a backup",
	Long: `Replace every todo in the store with the contents of a backup file.

Legacy files (a bare array, or todos without metadata) are migrated on the
way in. Take a backup first if the current list matters.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check store writability and process memory",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent tool calls from the activity log",
	Args:  cobra.NoArgs,
	RunE:  runActivity,
}

var (
	activityLimit    int
	activityTool     string
	activityFailures bool
)

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd, healthCmd, activityCmd)

	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "Number of entries to show")
	activityCmd.Flags().StringVar(&activityTool, "tool", "", "Only calls of this tool")
	activityCmd.Flags().BoolVar(&activityFailures, "failures", false, "Only failed calls")
	activityCmd.MarkFlagsMutuallyExclusive("tool", "failures")
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	act, err := openActivity(cfg)
	if err != nil {
		return err
	}
	defer act.Close()

	started := time.Now()
	path, err := store.CreateBackup()
	entry := activity.Entry{Timestamp: started, Type: activity.TypeBackup, Duration: time.Since(started)}
	if err != nil {
		entry.Summary = err.Error()
		recordActivity(act, entry)
		return err
	}
	entry.Success = true
	entry.Summary = "backup written to " + path
	entry.Data = map[string]any{"path": path}
	recordActivity(act, entry)

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Backup written:"), path)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	act, err := openActivity(cfg)
	if err != nil {
		return err
	}
	defer act.Close()

	path := args[0]
	started := time.Now()
	err = store.RestoreFromBackup(path)
	entry := activity.Entry{Timestamp: started, Type: activity.TypeRestore, Duration: time.Since(started), Data: map[string]any{"path": path}}
	if err != nil {
		entry.Summary = err.Error()
		recordActivity(act, entry)
		return err
	}

	stats, err := store.GetStats()
	if err != nil {
		return err
	}
	entry.Success = true
	entry.Summary = fmt.Sprintf("restored %d todos from %s", stats.Total, path)
	recordActivity(act, entry)

	fmt.Fprintf(cmd.OutOrStdout(), "%s %d todo(s) from %s\n", successStyle.Render("Restored"), stats.Total, path)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report := health.NewChecker(cfg.StorePath, cfg.Health.MemoryThreshold).Run()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("Health"))
	for _, check := range report.Checks {
		fmt.Fprintln(out, renderCheck(check))
	}
	if !report.Healthy {
		return fmt.Errorf("unhealthy")
	}
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ActivityDB == "" {
		return fmt.Errorf("activity log disabled: set activity_db in the config or $TODO_ACTIVITY_DB")
	}
	act, err := openActivity(cfg)
	if err != nil {
		return err
	}
	defer act.Close()

	var entries []activity.Entry
	switch {
	case activityTool != "":
		entries, err = act.ByTool(activityTool, activityLimit)
	case activityFailures:
		entries, err = act.Failures(activityLimit)
	default:
		entries, err = act.Recent(activityLimit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No activity recorded."))
		return nil
	}
	// Oldest first reads naturally in a terminal
	for i := len(entries) - 1; i >= 0; i-- {
		fmt.Fprintln(out, renderEntry(entries[i]))
	}
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/todo-mcp/internal/activity"
	"github.com/vthunder/todo-mcp/internal/health"
	"github.com/vthunder/todo-mcp/internal/logging"
	"github.com/vthunder/todo-mcp/internal/mcp"
	"github.com/vthunder/todo-mcp/internal/mcp/tools"
	"github.com/vthunder/todo-mcp/internal/widget"
)

const serverInstructions = `Manage the user's todo list. Use list_todos to show todos (filter by completion, priority, tags or overdue), create_todo / update_todo / complete_todo / delete_todo to change them, and backup_todos / restore_todos for snapshots. Due dates are YYYY-MM-DD.`

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Info("main", "Starting %s %s (store %s)", cfg.ServerName, cfg.ServerVersion, cfg.StorePath)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	act, err := openActivity(cfg)
	if err != nil {
		// The server still works without call history
		logging.Warn("main", "%v, activity log disabled", err)
	}
	defer act.Close()

	assets := widget.New(cfg.AssetsDir)
	if !assets.Available() {
		logging.Warn("main", "Widget assets not found at %s, widget will show a placeholder", cfg.AssetsDir)
	}

	server := mcp.NewServer(cfg.ServerName, cfg.ServerVersion, serverInstructions)
	tools.RegisterAll(server, &tools.Dependencies{
		Store:    store,
		Widget:   cfg.Widget,
		Assets:   assets,
		Health:   health.NewChecker(cfg.StorePath, cfg.Health.MemoryThreshold),
		Activity: act,
	})

	stats, err := store.GetStats()
	if err != nil {
		return err
	}
	recordActivity(act, activity.Entry{
		Timestamp: time.Now(),
		Type:      activity.TypeStartup,
		Success:   true,
		Summary:   fmt.Sprintf("%s %s started with %d todos", cfg.ServerName, cfg.ServerVersion, stats.Total),
		Data:      map[string]any{"store": cfg.StorePath, "tools": server.ToolNames()},
	})

	return server.Run()
}

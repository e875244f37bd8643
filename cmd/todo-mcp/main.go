// Package main implements the todo-mcp server and its maintenance CLI.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vthunder/todo-mcp/internal/activity"
	"github.com/vthunder/todo-mcp/internal/config"
	"github.com/vthunder/todo-mcp/internal/logging"
	"github.com/vthunder/todo-mcp/internal/todo"
)

var (
	flagConfig string
	flagStore  string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "todo-mcp",
	Short: "Todo list MCP server with a ChatGPT widget",
	Long: `todo-mcp serves a persistent todo list over the Model Context Protocol.

Without a subcommand it runs the stdio server. The other subcommands inspect
and maintain the same store file from a terminal.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (default $"+config.EnvConfigPath+" or ./"+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Todo store file, overrides the config")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv loads the first .env found next to the working directory or
// the executable. A missing file is not an error.
func loadDotEnv() {
	candidates := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), ".env"))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			logging.Debug("config", "Loaded %s", path)
			return
		}
	}
}

// loadConfig resolves settings from .env, the config file, the environment
// and finally the command line flags
func loadConfig() (*config.Config, error) {
	loadDotEnv()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagStore != "" {
		cfg.StorePath = flagStore
	}
	if flagDebug {
		cfg.Debug = true
	}
	logging.SetDebug(cfg.Debug)
	return cfg, nil
}

// openStore creates and loads the store, migrating legacy files
func openStore(cfg *config.Config) (*todo.Store, error) {
	store := todo.NewStore(cfg.StorePath)
	if err := store.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to load todos from %s: %w", cfg.StorePath, err)
	}
	return store, nil
}

// openActivity opens the activity database, or returns nil when disabled
func openActivity(cfg *config.Config) (*activity.Log, error) {
	if cfg.ActivityDB == "" {
		return nil, nil
	}
	act, err := activity.Open(cfg.ActivityDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log %s: %w", cfg.ActivityDB, err)
	}
	return act, nil
}

// recordActivity logs an entry and only warns on failure
func recordActivity(act *activity.Log, entry activity.Entry) {
	if err := act.Record(entry); err != nil {
		logging.Warn("activity", "Failed to record %s: %v", entry.Type, err)
	}
}

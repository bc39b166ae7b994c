package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeusync/docsync/internal/config"
)

var (
	configPath string
	serverURL  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Work with records in a docsync document store",
	Long: `docsync creates, updates, reads and deletes records in a document store
speaking the classes REST protocol, and can run an in-memory store for
development.

Example usage:
  docsync serve
  docsync put GameScore playerName=Sean score=1337
  docsync incr GameScore <id> score 5
  docsync get GameScore <id>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Base URL of the document store (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error or silent")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

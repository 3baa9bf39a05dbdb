// Package main provides the OpsLoom assistant CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opsloom/assistant-engine/internal/config"
	"github.com/opsloom/assistant-engine/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "assistantctl",
	Short: "OpsLoom assistant CLI for queries, seeding, and health checks",
	Long: `assistantctl provides commands for operating the OpsLoom assistant engine.

Use this tool to:
- Ask the assistant a question against a tenant's knowledge base
- Seed a local database with sample tenant data
- Check the health of a running API server

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		// Only ask talks to the chat-completion gateway; the other
		// commands load config without requiring gateway credentials.
		var err error
		if cmd.Name() == "ask" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadWithoutGateway(cfgFile)
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logLevel := cfg.Observability.LogLevel
		if !verbose {
			logLevel = "warn"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: "assistantctl",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("assistantctl 0.1.0")
		},
	}
}

// Package cli provides the command-line interface for ragbot.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/ragbot/internal/config"
	"github.com/raphaelgruber/ragbot/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	verbose    bool
	showStats  bool

	// Global config, logger and metrics, set up in PersistentPreRunE
	cfg       config.Config
	logger    *slog.Logger
	collector = metrics.NewCollector()
	closeLog  = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragbot",
	Short: "Retrieval-augmented chat over a corpus of research papers",
	Long: `Ragbot downloads a small corpus of papers, splits them into overlapping
chunks, indexes their embeddings and answers questions about them with an
LLM that sees the most relevant chunks and the recent conversation.

Typical flow:
  ragbot fetch     download the configured PDFs into data/
  ragbot ingest    extract and chunk them into artifacts/chunks.json
  ragbot build     embed the chunks into artifacts/index/
  ragbot chat      talk to the bot
  ragbot eval      answer questions.json and score the answers
  ragbot report    render the evaluation into report/report.pdf`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && cmd.Name() != "stats" {
			printStats(collector.Snapshot())
		}
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./ragbot.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print pipeline statistics after the command")

	// Add subcommands
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(memoryTestCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ragbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ragbot %s\n", Version)
	},
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

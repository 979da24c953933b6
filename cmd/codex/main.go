// Command codex resolves, fetches, caches, and syncs knowledge artifacts
// addressed by codex:// URIs.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"

	flagJSON    bool
	flagLogFile string
	flagVerbose bool

	logger = log.New(io.Discard, "", log.LstdFlags)
)

var rootCmd = &cobra.Command{
	Use:   "codex",
	Short: "Knowledge artifact resolution and sync",
	Long: `codex addresses documentation, specs, and standards across git
repositories with codex:// URIs, serves them through a freshness-aware
local cache, and syncs project files to and from a central knowledge
repository.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// setupLogging routes internal logging to a rotating file when requested,
// to stderr with --verbose, and nowhere otherwise. CLI output itself always
// goes to stdout.
func setupLogging() {
	var sink io.Writer = io.Discard
	if flagLogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   flagLogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	} else if flagVerbose {
		sink = os.Stderr
	}
	logger.SetOutput(sink)
	logger.SetPrefix("[codex] ")
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write internal logs to a rotating file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log internal activity to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/ui"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts, sizes, and freshness breakdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		engine, err := a.openEngine()
		if err != nil {
			return err
		}

		stats, err := engine.Stats()
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		fmt.Printf("%s Cache: %s\n", ui.RenderAccent("◆"), a.refCtx.CacheDir)
		fmt.Printf("   Entries: %d (%d bytes)\n", stats.Entries, stats.TotalBytes)
		fmt.Printf("   Fresh:   %s\n", ui.RenderPass(fmt.Sprintf("%d", stats.Fresh)))
		fmt.Printf("   Stale:   %s\n", ui.RenderWarn(fmt.Sprintf("%d", stats.Stale)))
		fmt.Printf("   Expired: %s\n", ui.RenderFail(fmt.Sprintf("%d", stats.Expired)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [pattern]",
	Short: "Remove cache entries, optionally matching a URI pattern",
	Long: `Remove cache entries. Without a pattern the entire cache is cleared.
With a pattern, every entry whose URI matches the regular expression is
removed. Patterns are validated before use; pathological expressions are
rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		engine, err := a.openEngine()
		if err != nil {
			return err
		}

		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}

		removed, err := engine.Invalidate(pattern)
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]int{"removed": removed})
		}
		fmt.Printf("%s Removed %d cache entries\n", ui.RenderPass("✓"), removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

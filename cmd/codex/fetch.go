package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/cache"
	"github.com/fractary/codex/internal/ui"
)

var (
	fetchForceRefresh bool
	fetchNoStale      bool
	fetchTTL          time.Duration
	fetchOutput       string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <uri>...",
	Short: "Fetch content through the cache",
	Long: `Fetch one or more codex:// URIs. Fresh cache entries are served
directly; misses fetch through the storage fallback cascade and populate
the cache.

A single URI prints its content to stdout. Multiple URIs (or --output)
write files into a directory.`,
	Args: cobra.MinimumNArgs(1),
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

		opts := cache.DefaultGetOptions()
		opts.ForceRefresh = fetchForceRefresh
		opts.FallbackToStale = !fetchNoStale
		opts.TTLOverride = fetchTTL
		opts.Fetch = a.fetchOptions()

		if len(args) == 1 && fetchOutput == "" {
			return fetchOne(cmd, a, engine, args[0], opts)
		}
		return fetchMany(cmd, a, engine, args, opts)
	},
}

func fetchOne(cmd *cobra.Command, a *app, engine *cache.Engine, uri string, opts cache.GetOptions) error {
	resolved, err := a.resolve(uri)
	if err != nil {
		return err
	}

	result, err := engine.Get(cmd.Context(), resolved, opts)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"uri":       uri,
			"source":    result.Source,
			"fromCache": result.FromCache,
			"stale":     result.Stale,
			"size":      len(result.Content),
			"content":   string(result.Content),
		})
	}

	if result.Stale {
		fmt.Fprintf(os.Stderr, "%s serving stale copy of %s\n", ui.RenderWarn("⚠"), uri)
	}
	_, err = os.Stdout.Write(result.Content)
	return err
}

func fetchMany(cmd *cobra.Command, a *app, engine *cache.Engine, uris []string, opts cache.GetOptions) error {
	outDir := fetchOutput
	if outDir == "" {
		outDir = "."
	}

	failed := 0
	for _, uri := range uris {
		resolved, err := a.resolve(uri)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.RenderFail("✗"), uri, err)
			failed++
			continue
		}

		result, err := engine.Get(cmd.Context(), resolved, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.RenderFail("✗"), uri, err)
			failed++
			continue
		}

		dst := filepath.Join(outDir, filepath.FromSlash(resolved.Path))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, result.Content, 0o644); err != nil {
			return err
		}
		fmt.Printf("%s %s (%d bytes, %s)\n", ui.RenderPass("✓"), dst, len(result.Content), result.Source)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(uris))
	}
	return nil
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForceRefresh, "force-refresh", false, "bypass the cache and refetch")
	fetchCmd.Flags().BoolVar(&fetchNoStale, "no-stale", false, "refuse stale cache entries")
	fetchCmd.Flags().DurationVar(&fetchTTL, "ttl", 0, "override the cache TTL for fetched entries")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "directory to write fetched files into")
	rootCmd.AddCommand(fetchCmd)
}

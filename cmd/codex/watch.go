package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/ui"
	"github.com/fractary/codex/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch local source directories and invalidate changed cache entries",
	Long: `Monitor the project's configured local source directories and remove
the cache entry of any file that is created, modified, or deleted, so the
next fetch sees the new content. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg == nil || len(a.cfg.LocalSources) == 0 {
			return fmt.Errorf("watch requires local_sources in config")
		}

		engine, err := a.openEngine()
		if err != nil {
			return err
		}

		cfg := watch.DefaultConfig()
		cfg.Logger = logger
		watcher, err := watch.New(a.refCtx.Org, a.refCtx.Project, a.refCtx.RootDir, a.cfg.LocalSources, engine, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Watching %v (Ctrl-C to stop)\n", ui.RenderAccent("◆"), a.cfg.LocalSources)
		return watcher.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

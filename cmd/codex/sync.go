package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/syncer"
	"github.com/fractary/codex/internal/ui"
)

var (
	syncDryRun bool
	syncForce  bool
	syncPrune  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync project files with the central knowledge repository",
}

var syncToCodexCmd = &cobra.Command{
	Use:   "to-codex",
	Short: "Push local project files into the knowledge repository",
	Long: `Diff the local project tree against its subtree in the knowledge
repository, then copy, update, and remove files there, commit, and push.

Files whose upstream copy changed since the last sync are reported as
conflicts and skipped unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), syncer.ToCodex)
	},
}

var syncFromCodexCmd = &cobra.Command{
	Use:   "from-codex",
	Short: "Pull files routed to this project from the knowledge repository",
	Long: `Scan the entire knowledge repository for files whose frontmatter
routes them to this project, then create and update the local copies.

Upstream deletions are mirrored locally only with --prune.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), syncer.FromCodex)
	},
}

var syncBidirectionalCmd = &cobra.Command{
	Use:   "bidirectional",
	Short: "Pull routed files, then push local changes",
	Long: `Run a from-codex sync followed by a to-codex sync, so upstream
edits land locally before local changes are pushed back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runSync(cmd.Context(), syncer.FromCodex); err != nil {
			return err
		}
		return runSync(cmd.Context(), syncer.ToCodex)
	},
}

func runSync(ctx context.Context, direction syncer.Direction) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.syncEngine()
	if err != nil {
		return err
	}

	popts := syncer.PlanOptions{Force: syncForce, Prune: syncPrune}
	if a.cfg != nil && a.cfg.Sync.PruneLocal {
		popts.Prune = true
	}

	var prepared *syncer.Prepared
	switch direction {
	case syncer.ToCodex:
		prepared, err = engine.PlanToCodex(ctx, popts)
	case syncer.FromCodex:
		prepared, err = engine.PlanFromCodex(ctx, popts)
	}
	if err != nil {
		return err
	}
	defer prepared.Close()

	printPlan(prepared.Plan)

	if syncDryRun {
		if !flagJSON {
			fmt.Printf("%s Dry run: no files were changed\n", ui.RenderAccent("→"))
		}
		return nil
	}
	if len(prepared.Plan.Files) == 0 && direction == syncer.FromCodex {
		if !flagJSON {
			fmt.Printf("%s Nothing to sync\n", ui.RenderPass("✓"))
		}
		return conflictErr(prepared.Plan)
	}

	result, err := engine.Execute(ctx, prepared)
	if err != nil {
		return err
	}
	printResult(result)

	if !result.Success {
		return fmt.Errorf("sync finished with %d failures", result.Failed)
	}
	// Conflicted files were held back from the plan; everything else has
	// synced, but the caller still needs to resolve them.
	return conflictErr(prepared.Plan)
}

func conflictErr(plan *syncer.Plan) error {
	if len(plan.Conflicts) == 0 || syncForce {
		return nil
	}
	return fmt.Errorf("%d conflicted files were held back; resolve them or rerun with --force", len(plan.Conflicts))
}

func printPlan(plan *syncer.Plan) {
	if flagJSON {
		_ = json.NewEncoder(os.Stdout).Encode(plan)
		return
	}

	fmt.Printf("%s Plan: %s → %s\n", ui.RenderAccent("→"), plan.Source, plan.Target)
	for _, f := range plan.Files {
		fmt.Printf("   %-6s %s\n", f.Operation, f.Path)
	}
	fmt.Printf("   %d files, %d bytes, ~%dms\n", plan.TotalFiles, plan.TotalBytes, plan.EstimatedTimeMs)
	if len(plan.Skipped) > 0 {
		fmt.Printf("   %s %d unchanged\n", ui.RenderMuted("·"), len(plan.Skipped))
	}
	for _, path := range plan.Conflicts {
		fmt.Printf("   %s conflict: %s\n", ui.RenderWarn("⚠"), path)
	}
}

func printResult(result *syncer.Result) {
	if flagJSON {
		_ = json.NewEncoder(os.Stdout).Encode(result)
		return
	}

	if result.State == syncer.StateNoChanges {
		fmt.Printf("%s No changes to commit\n", ui.RenderPass("✓"))
		return
	}

	marker := ui.RenderPass("✓")
	if !result.Success {
		marker = ui.RenderFail("✗")
	}
	fmt.Printf("%s Synced %d, failed %d, skipped %d in %dms\n",
		marker, result.Synced, result.Failed, result.Skipped, result.DurationMs)
	for _, fe := range result.Errors {
		fmt.Printf("   %s %s: %s\n", ui.RenderFail("✗"), fe.Path, fe.Error)
	}
}

func init() {
	syncCmd.PersistentFlags().BoolVar(&syncDryRun, "dry-run", false, "compute and print the plan without changing anything")
	syncCmd.PersistentFlags().BoolVar(&syncForce, "force", false, "sync conflicted files anyway, source winning")
	syncCmd.PersistentFlags().BoolVar(&syncPrune, "prune", false, "mirror upstream deletions locally (from-codex)")
	syncCmd.AddCommand(syncToCodexCmd)
	syncCmd.AddCommand(syncFromCodexCmd)
	syncCmd.AddCommand(syncBidirectionalCmd)
	rootCmd.AddCommand(syncCmd)
}

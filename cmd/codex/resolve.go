package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/ui"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <uri>",
	Short: "Resolve a codex:// URI against the current project context",
	Long: `Parse and resolve a codex:// URI, showing which provider family owns
it and where it lives on disk.

The project context comes from CODEX_ORG/CODEX_PROJECT, the config file,
or the git origin remote, in that order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		resolved, err := a.resolve(args[0])
		if err != nil {
			return err
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"uri":              resolved.URI,
				"org":              resolved.Org,
				"project":          resolved.Project,
				"path":             resolved.Path,
				"isCurrentProject": resolved.IsCurrentProject,
				"source":           resolved.Source,
				"localPath":        resolved.LocalPath,
				"cachePath":        resolved.CachePath,
			})
		}

		fmt.Printf("%s %s\n", ui.RenderAccent("→"), resolved.URI)
		fmt.Printf("   Org:     %s\n", resolved.Org)
		fmt.Printf("   Project: %s\n", resolved.Project)
		if resolved.Path != "" {
			fmt.Printf("   Path:    %s\n", resolved.Path)
		}
		fmt.Printf("   Source:  %s\n", resolved.Source)
		if resolved.IsCurrentProject {
			fmt.Printf("   %s current project\n", ui.RenderPass("✓"))
		}
		if resolved.LocalPath != "" {
			fmt.Printf("   Local:   %s\n", resolved.LocalPath)
		}
		if resolved.CachePath != "" {
			fmt.Printf("   Cache:   %s\n", ui.RenderMuted(resolved.CachePath))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fractary/codex/internal/ui"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List registered artifact types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		types := a.registry.All()

		if flagJSON {
			out := make([]map[string]any, 0, len(types))
			for _, t := range types {
				out = append(out, map[string]any{
					"name":       t.Name,
					"patterns":   t.Patterns,
					"ttlSeconds": t.TTLSeconds,
				})
			}
			return json.NewEncoder(os.Stdout).Encode(out)
		}

		for _, t := range types {
			ttl := time.Duration(t.TTLSeconds) * time.Second
			fmt.Printf("%s %-10s ttl=%-8s %s\n",
				ui.RenderAccent("◆"), t.Name, ttl, strings.Join(t.Patterns, ", "))
			if t.Description != "" {
				fmt.Printf("   %s\n", ui.RenderMuted(t.Description))
			}
		}
		return nil
	},
}

var typesDetectCmd = &cobra.Command{
	Use:   "detect <path>",
	Short: "Show which artifact type a path maps to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		name := a.registry.Detect(args[0])
		ttl := a.registry.TTLFor(args[0], 0)

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"path": args[0],
				"type": name,
				"ttl":  ttl.String(),
			})
		}
		fmt.Printf("%s %s → %s (ttl %s)\n", ui.RenderAccent("→"), args[0], ui.RenderBold(name), ttl)
		return nil
	},
}

func init() {
	typesCmd.AddCommand(typesDetectCmd)
	rootCmd.AddCommand(typesCmd)
}

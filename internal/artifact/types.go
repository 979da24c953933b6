// Package artifact classifies paths into artifact types and owns the
// TTL and archive policies attached to each type.
//
// Types are matched against paths with doublestar glob patterns. When more
// than one type's patterns match, the type whose longest pattern matched
// wins; ties go to the earliest-registered type.
package artifact

import "time"

// TTL constants in seconds.
const (
	Minute = 60
	Hour   = 3600
	Day    = 86400
	Week   = 604800
)

// Type describes an artifact type: the glob patterns that claim paths for
// it, its cache TTL, and an optional archive policy.
type Type struct {
	// Name uniquely identifies the type.
	Name string

	// Patterns are doublestar globs matched against normalized paths.
	Patterns []string

	// TTLSeconds is the default cache TTL for paths of this type.
	TTLSeconds int

	// ArchiveAfterDays archives content older than this many days.
	// Zero disables archiving for the type.
	ArchiveAfterDays int

	// ArchiveStorage names the archive backend for the type.
	ArchiveStorage string

	// Description is a human-readable summary.
	Description string
}

// TTL returns the type's TTL as a duration.
func (t Type) TTL() time.Duration {
	return time.Duration(t.TTLSeconds) * time.Second
}

// DefaultTypeName is the catch-all type assigned when no pattern matches.
const DefaultTypeName = "default"

// builtins are the built-in artifact types, in registration order.
func builtins() []Type {
	return []Type{
		{
			Name:        "docs",
			Patterns:    []string{"docs/**", "*.md", "**/*.md", "**/*.mdx"},
			TTLSeconds:  Day,
			Description: "Documentation files",
		},
		{
			Name:        "specs",
			Patterns:    []string{"specs/**", "specifications/**"},
			TTLSeconds:  Day,
			Description: "Specification documents",
		},
		{
			Name:             "logs",
			Patterns:         []string{"logs/**", "**/*.log"},
			TTLSeconds:       Hour,
			ArchiveAfterDays: 30,
			ArchiveStorage:   "default",
			Description:      "Session and build logs",
		},
		{
			Name:        "standards",
			Patterns:    []string{"standards/**"},
			TTLSeconds:  Week,
			Description: "Organization standards",
		},
		{
			Name:        "templates",
			Patterns:    []string{"templates/**", "**/*.tmpl", "**/*.template.*"},
			TTLSeconds:  Week,
			Description: "Template files",
		},
		{
			Name:        "state",
			Patterns:    []string{"state/**", "**/*.state.json"},
			TTLSeconds:  5 * Minute,
			Description: "Mutable project state",
		},
		{
			Name:        "config",
			Patterns:    []string{"config/**", "*.yaml", "*.yml", "*.json", "*.toml", ".fractary/**"},
			TTLSeconds:  Hour,
			Description: "Configuration files",
		},
		{
			Name:        DefaultTypeName,
			Patterns:    []string{"**"},
			TTLSeconds:  Day,
			Description: "Catch-all for unclassified paths",
		},
	}
}

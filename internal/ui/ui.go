// Package ui provides terminal styling helpers for the codex CLI.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")) // purple
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")) // amber
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")) // red
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")) // gray
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderAccent styles informational markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass styles success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles warning markers.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles failure markers.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted styles secondary detail text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderBold styles emphasized text.
func RenderBold(s string) string { return boldStyle.Render(s) }

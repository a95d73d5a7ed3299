// Package ui renders coachsync's terminal output.
//
// Colors are chosen by termenv from the terminal's capabilities and turned
// off entirely when stdout is not a terminal or NO_COLOR is set.
package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors.
var (
	Accent  = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"}
	Pass    = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#8BC34A"}
	Warn    = lipgloss.AdaptiveColor{Light: "#F57F17", Dark: "#FFC107"}
	Fail    = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E53935"}
	Muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	Heading = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#F2F2F2"}
)

type styles struct {
	accent lipgloss.Style
	pass   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	bold   lipgloss.Style
}

var (
	mu       sync.Mutex
	renderer *lipgloss.Renderer
	current  styles
)

func init() {
	renderer = lipgloss.NewRenderer(os.Stdout)
	if !colorWanted() {
		renderer.SetColorProfile(termenv.Ascii)
	}
	current = newStyles(renderer)
}

// colorWanted reports whether stdout should receive colored output.
func colorWanted() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		accent: r.NewStyle().Foreground(Accent),
		pass:   r.NewStyle().Foreground(Pass),
		warn:   r.NewStyle().Foreground(Warn),
		fail:   r.NewStyle().Foreground(Fail).Bold(true),
		muted:  r.NewStyle().Foreground(Muted),
		bold:   r.NewStyle().Foreground(Heading).Bold(true),
	}
}

// SetColorEnabled forces colored output on or off.
func SetColorEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		renderer.SetColorProfile(termenv.EnvColorProfile())
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
	current = newStyles(renderer)
}

func get() styles {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// RenderAccent renders informational markers and headings.
func RenderAccent(s string) string { return get().accent.Render(s) }

// RenderPass renders success markers.
func RenderPass(s string) string { return get().pass.Render(s) }

// RenderWarn renders warnings.
func RenderWarn(s string) string { return get().warn.Render(s) }

// RenderFail renders errors.
func RenderFail(s string) string { return get().fail.Render(s) }

// RenderMuted renders secondary details.
func RenderMuted(s string) string { return get().muted.Render(s) }

// RenderBold renders emphasized text.
func RenderBold(s string) string { return get().bold.Render(s) }

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/spf13/cobra"
)

const (
	logoText1 = "█▀ █ █▀▄ █▀▀ █▄▀ █ █▀▀ █▄▀"
	logoText2 = "▄█ █ █▄▀ ██▄ █ █ █ █▄▄ █ █"

	logoColorA = "#cba6f7"
	logoColorB = "#89b4fa"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sidekick",
	Short: "Subagent orchestrator with embedded persistence and MCP tools",
}

// renderLogo creates the logo with gradient colors
func renderLogo() string {
	line1 := applyGradient(logoText1, logoColorA, logoColorB)
	line2 := applyGradient(logoText2, logoColorA, logoColorB)
	return strings.Join([]string{line1, line2}, "\n")
}

// applyGradient colors each rune of text, blending from one hex color to
// the other across its width.
func applyGradient(text, from, to string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return text
	}

	var b strings.Builder
	for i, r := range runes {
		pos := 0.0
		if len(runes) > 1 {
			pos = float64(i) / float64(len(runes)-1)
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(from, to, pos)))
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}

// interpolateColor blends between two hex colors based on position (0.0 to 1.0)
func interpolateColor(colorA, colorB string, pos float64) string {
	r1, g1, b1 := parseHexColor(colorA)
	r2, g2, b2 := parseHexColor(colorB)

	r := uint8(float64(r1)*(1-pos) + float64(r2)*pos)
	g := uint8(float64(g1)*(1-pos) + float64(g2)*pos)
	b := uint8(float64(b1)*(1-pos) + float64(b2)*pos)

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// parseHexColor extracts RGB values from a #RRGGBB string
func parseHexColor(hex string) (uint8, uint8, uint8) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b uint8
	if len(hex) == 6 {
		_, _ = fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	}

	return r, g, b
}

func init() {
	// Set Long description with logo
	rootCmd.Long = renderLogo() + `

sidekick is a Go CLI tool that runs AI subagents as supervised child
processes. It decodes the agent's streaming JSON output into cumulative
run state, persists session history via embedded NATS JetStream, and
exposes session tools to MCP clients over streamable HTTP.`

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(setupCmd)
}

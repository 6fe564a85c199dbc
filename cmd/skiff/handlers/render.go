package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/skiffhq/skiff/internal/graph"
	"github.com/skiffhq/skiff/internal/reconcile"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	greenStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	redStyle     = lipgloss.NewStyle().Foreground(colorRed)
	yellowStyle  = lipgloss.NewStyle().Foreground(colorYellow)
)

// renderPlan prints the dependency-ordered plan before any provider is
// touched. Secret values never appear here; binding rows list key names
// only.
func renderPlan(w io.Writer, plan *graph.Plan, destroy bool) {
	verb := "deploy"
	if destroy {
		verb = "destroy"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("  skiff %s: %s", verb, plan.Environment)))
	fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("═", 40)))
	fmt.Fprintln(w)

	for _, spec := range plan.Specs {
		deps := ""
		if len(spec.DependsOn) > 0 {
			deps = dimStyle.Render(" after " + strings.Join(spec.DependsOn, ", "))
		}
		extra := ""
		if spec.Kind == graph.SecretBinding {
			extra = dimStyle.Render(fmt.Sprintf(" (%d secrets)", len(spec.Secrets)))
		}
		fmt.Fprintf(w, "    %-22s %-16s %s%s%s\n",
			spec.ID, dimStyle.Render(string(spec.Kind)), spec.Provider, extra, deps)
	}
	fmt.Fprintln(w)
}

// renderResult prints the per-resource status table and the exported
// service URLs.
func renderResult(w io.Writer, result *reconcile.Result) {
	fmt.Fprintln(w, sectionStyle.Render("  Resources"))
	fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("─", 40)))
	for _, status := range result.Statuses {
		line := fmt.Sprintf("    %-22s %s", status.ID, actionStyle(status.Action).Render(string(status.Action)))
		if status.Message != "" {
			line += " " + dimStyle.Render(firstLine(status.Message))
		}
		fmt.Fprintln(w, line)
	}

	if len(result.Outputs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("  Outputs"))
		fmt.Fprintln(w, dimStyle.Render("  "+strings.Repeat("─", 40)))
		for _, status := range result.Statuses {
			if url, ok := result.Outputs[status.ID]; ok {
				fmt.Fprintf(w, "    %-22s %s\n", status.ID, url)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Stack %s is %s\n", result.Environment, string(result.Phase))
}

func actionStyle(action reconcile.Action) lipgloss.Style {
	switch action {
	case reconcile.ActionApplied, reconcile.ActionDestroyed:
		return greenStyle
	case reconcile.ActionFailed:
		return redStyle
	case reconcile.ActionBlocked, reconcile.ActionCancelled:
		return yellowStyle
	default:
		return dimStyle
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Package observability provides logging setup and formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode. It implements pipeline.ProgressSink.
type Printer struct {
	out io.Writer
}

var _ pipeline.ProgressSink = (*Printer)(nil)

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// OnEvent prints a one-line progress bar for each pipeline event
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) OnEvent(e pipeline.Progress) {
	filled := e.Percent / 5
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
	fmt.Fprintf(p.out, "[%s] %3d%% %-19s %s\n", bar, e.Percent, e.Stage, e.Message)
}

// PrintProfile outputs a human-readable summary of the candidate profile.
func (p *Printer) PrintProfile(profile *types.CandidateProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Name:       %s\n", profile.Name))
	sb.WriteString(fmt.Sprintf("Title:      %s\n", profile.Title))
	sb.WriteString(fmt.Sprintf("Category:   %s\n", profile.Category))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", profile.Confidence))
	sb.WriteString("\n")

	if len(profile.Skills) > 0 {
		sb.WriteString("Skills:\n")
		count := min(len(profile.Skills), maxItemsToShow)
		for i := 0; i < count; i++ {
			skill := profile.Skills[i]
			sb.WriteString(fmt.Sprintf("  • %s %s\n", skill.Name, levelDots(skill.Level)))
		}
		if len(profile.Skills) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(profile.Skills)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(profile.Experience) > 0 {
		sb.WriteString("Experience:\n")
		count := min(len(profile.Experience), 3)
		for i := 0; i < count; i++ {
			exp := profile.Experience[i]
			sb.WriteString(fmt.Sprintf("  • %s @ %s\n", exp.Title, exp.Company))
		}
		if len(profile.Experience) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(profile.Experience)-3))
		}
	}

	p.printBox("CANDIDATE PROFILE", strings.TrimSuffix(sb.String(), "\n"))
}

func levelDots(level int) string {
	level = types.ClampSkillLevel(level)
	return strings.Repeat("●", level) + strings.Repeat("○", types.MaxSkillLevel-level)
}

// PrintComponents outputs the selected components in display order.
func (p *Printer) PrintComponents(components []types.ComponentConfig, theme types.ThemePalette) {
	if len(components) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Theme: %s\n\n", theme))
	for _, c := range components {
		sb.WriteString(fmt.Sprintf("%d. %s", c.Order, c.Type))
		if c.Theme != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", c.Theme))
		}
		sb.WriteString("\n")
	}

	p.printBox("SELECTED COMPONENTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResult outputs the outcome of a run: the failure, or the profile, components, fallbacks
// and warnings.
func (p *Printer) PrintResult(filename string, r *pipeline.Result) {
	if r == nil {
		return
	}

	if !r.Success {
		p.printBox("FAILED: "+filename, fmt.Sprintf("Code:  %s\nError: %s", r.ErrorCode, r.Error))
		return
	}

	p.PrintProfile(r.Profile)
	p.PrintComponents(r.Components, r.Theme)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Submission: %s\n", r.SubmissionID))
	sb.WriteString(fmt.Sprintf("Time:       %dms\n", r.ProcessingTimeMs()))
	if len(r.Fallbacks) > 0 {
		stages := make([]string, len(r.Fallbacks))
		for i, s := range r.Fallbacks {
			stages[i] = string(s)
		}
		sb.WriteString(fmt.Sprintf("Fallbacks:  %s\n", strings.Join(stages, ", ")))
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		count := min(len(r.Warnings), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", r.Warnings[i]))
		}
		if len(r.Warnings) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.Warnings)-maxItemsToShow))
		}
	}

	p.printBox("COMPLETED: "+filename, strings.TrimSuffix(sb.String(), "\n"))
}

package engine

import (
	"fmt"
	"strings"
)

// TextSummary renders the end-of-run console summary of a bundle.
func TextSummary(b *Bundle) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(fmt.Sprintf("Total: %d findings\n", b.Summary.TotalFindings))
	sb.WriteString(fmt.Sprintf("  Critical: %d\n", b.Summary.Critical))
	sb.WriteString(fmt.Sprintf("  High:     %d\n", b.Summary.High))
	sb.WriteString(fmt.Sprintf("  Medium:   %d\n", b.Summary.Medium))
	sb.WriteString(fmt.Sprintf("  Low:      %d\n", b.Summary.Low))
	sb.WriteString(fmt.Sprintf("  Info:     %d\n", b.Summary.Info))
	sb.WriteString(fmt.Sprintf("  Average confidence: %.0f%%\n", b.Statistics.AverageConfidence*100))
	if b.Statistics.TotalErrors > 0 {
		sb.WriteString(fmt.Sprintf("  Analysis errors: %d\n", b.Statistics.TotalErrors))
	}
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	return sb.String()
}

// TextDiff renders a BundleDiff. Unchanged findings are capped at ten lines.
func TextDiff(diff BundleDiff, baselineName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Snapshot Comparison (vs %s):\n", baselineName))
	sb.WriteString("--------------------------------------------------\n")

	sb.WriteString(fmt.Sprintf("NEW RISKS: %d\n", len(diff.New)))
	for _, f := range diff.New {
		sb.WriteString(diffLine("+", f))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("FIXED RISKS: %d\n", len(diff.Fixed)))
	for _, f := range diff.Fixed {
		sb.WriteString(diffLine("-", f))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("UNCHANGED RISKS: %d\n", len(diff.Unchanged)))
	for i, f := range diff.Unchanged {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("  ... and %d more.\n", len(diff.Unchanged)-10))
			break
		}
		sb.WriteString(diffLine("=", f))
	}
	return sb.String()
}

func diffLine(mark string, f Finding) string {
	return fmt.Sprintf("  [%s] [%s %.1f] %s (%s) - %s\n", mark, strings.ToUpper(f.Severity), f.CVSSScore, f.Title, f.FindingType, f.SourceData.Tool)
}

package engine

import (
	"math"
	"strings"
)

// Summary counts findings per severity. The five buckets always add up to
// TotalFindings.
type Summary struct {
	TotalFindings int `json:"total_findings"`
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	Info          int `json:"info"`
}

type Statistics struct {
	FindingsByTool    map[string]int `json:"findings_by_tool"`
	FindingsByType    map[string]int `json:"findings_by_type"`
	AverageConfidence float64        `json:"average_confidence"`
	TotalErrors       int            `json:"total_errors"`
}

// Aggregation is everything derived from a run's final findings.
type Aggregation struct {
	Findings       []Finding
	Summary        Summary
	Statistics     Statistics
	Errors         []ErrorRecord
	ProcessedFiles []string
}

// Aggregate recomputes the summary and statistics from findings alone, so it
// can be called again after any later filtering without drifting.
func Aggregate(findings []Finding, errs []ErrorRecord, processed []string) Aggregation {
	agg := Aggregation{
		Findings:       append([]Finding{}, findings...),
		Errors:         append([]ErrorRecord{}, errs...),
		ProcessedFiles: append([]string{}, processed...),
		Statistics: Statistics{
			FindingsByTool: make(map[string]int),
			FindingsByType: make(map[string]int),
			TotalErrors:    len(errs),
		},
	}

	var confidence float64
	for _, f := range findings {
		agg.Summary.TotalFindings++
		switch strings.ToLower(f.Severity) {
		case SeverityCritical:
			agg.Summary.Critical++
		case SeverityHigh:
			agg.Summary.High++
		case SeverityMedium:
			agg.Summary.Medium++
		case SeverityLow:
			agg.Summary.Low++
		default:
			// Unclassified severities are filed under info to keep the
			// buckets summing to the total.
			agg.Summary.Info++
		}

		agg.Statistics.FindingsByTool[labelOr(f.SourceData.Tool)]++
		agg.Statistics.FindingsByType[labelOr(f.FindingType)]++
		confidence += f.ConfidenceScore
	}

	if len(findings) > 0 {
		agg.Statistics.AverageConfidence = math.Round(confidence/float64(len(findings))*100) / 100
	}
	return agg
}

func labelOr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

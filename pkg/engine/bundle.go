package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const AnalyzerVersion = "2.0"

// AuditMetadata describes the engagement the bundle belongs to.
type AuditMetadata struct {
	ClientName      string    `json:"client_name"`
	AuditDate       string    `json:"audit_date"`
	AuditType       string    `json:"audit_type"`
	Scope           []string  `json:"scope"`
	GenerationDate  time.Time `json:"generation_date"`
	AnalyzerVersion string    `json:"analyzer_version"`
	AIModel         string    `json:"ai_model"`
	RunID           string    `json:"run_id"`
}

type ProcessingInfo struct {
	ProcessedFiles []string      `json:"processed_files"`
	Errors         []ErrorRecord `json:"errors"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Bundle is the document handed to report renderers. Its field names and
// nesting are a stable contract; summary and statistics are always present.
type Bundle struct {
	AuditMetadata  AuditMetadata  `json:"audit_metadata"`
	Findings       []Finding      `json:"findings"`
	Summary        Summary        `json:"summary"`
	Statistics     Statistics     `json:"statistics"`
	ProcessingInfo ProcessingInfo `json:"processing_info"`
}

// BuildBundle assembles the output document. Empty collections are encoded
// as [] and {} rather than null.
func BuildBundle(meta AuditMetadata, agg Aggregation, now time.Time) *Bundle {
	if meta.AuditDate == "" {
		meta.AuditDate = now.Format("2006-01-02")
	}
	if meta.AnalyzerVersion == "" {
		meta.AnalyzerVersion = AnalyzerVersion
	}
	if meta.Scope == nil {
		meta.Scope = []string{}
	}
	meta.GenerationDate = now

	stats := agg.Statistics
	if stats.FindingsByTool == nil {
		stats.FindingsByTool = map[string]int{}
	}
	if stats.FindingsByType == nil {
		stats.FindingsByType = map[string]int{}
	}

	b := &Bundle{
		AuditMetadata: meta,
		Findings:      agg.Findings,
		Summary:       agg.Summary,
		Statistics:    stats,
		ProcessingInfo: ProcessingInfo{
			ProcessedFiles: agg.ProcessedFiles,
			Errors:         agg.Errors,
			Timestamp:      now,
		},
	}
	if b.Findings == nil {
		b.Findings = []Finding{}
	}
	if b.ProcessingInfo.ProcessedFiles == nil {
		b.ProcessingInfo.ProcessedFiles = []string{}
	}
	if b.ProcessingInfo.Errors == nil {
		b.ProcessingInfo.Errors = []ErrorRecord{}
	}
	return b
}

// SaveBundle writes b as indented JSON, creating parent directories.
func SaveBundle(path string, b *Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle %s: %w", path, err)
	}
	return &b, nil
}

// BundleDiff sorts the current findings against a baseline run.
type BundleDiff struct {
	New       []Finding
	Fixed     []Finding
	Unchanged []Finding
}

// CompareBundles matches findings on type, title and source tool. Ids are
// not used: they are only unique within a run.
func CompareBundles(baseline, current *Bundle) BundleDiff {
	var diff BundleDiff

	seen := make(map[string]bool, len(baseline.Findings))
	for _, f := range baseline.Findings {
		seen[diffKey(f)] = true
	}

	currentKeys := make(map[string]bool, len(current.Findings))
	for _, f := range current.Findings {
		k := diffKey(f)
		currentKeys[k] = true
		if seen[k] {
			diff.Unchanged = append(diff.Unchanged, f)
		} else {
			diff.New = append(diff.New, f)
		}
	}

	for _, f := range baseline.Findings {
		if !currentKeys[diffKey(f)] {
			diff.Fixed = append(diff.Fixed, f)
		}
	}
	return diff
}

func diffKey(f Finding) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return norm(f.FindingType) + "|" + norm(f.Title) + "|" + norm(f.SourceData.Tool)
}

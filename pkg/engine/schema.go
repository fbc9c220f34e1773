package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/user/fricadelle/pkg/prompt"
)

// Length limits for the model's free-text fields, in characters. They are
// the ones quoted in the detection prompt.
const (
	MinTitleLength          = prompt.MinTitleLength
	MaxTitleLength          = prompt.MaxTitleLength
	MinDescriptionLength    = prompt.MinDescriptionLength
	MinRemediationLength    = prompt.MinRemediationLength
	MinBusinessImpactLength = prompt.MinBusinessImpactLength
)

// SchemaError describes a response or candidate that failed validation.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var validSeverities = map[string]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	SeverityMedium:   true,
	SeverityLow:      true,
	SeverityInfo:     true,
}

var validComplexities = map[string]bool{"low": true, "medium": true, "high": true}

// ValidateResponse checks the shape of a decoded detection response and
// returns its unvalidated candidate entries. An empty list is valid.
func ValidateResponse(doc map[string]any) ([]any, error) {
	raw, ok := doc["vulnerabilities"]
	if !ok {
		return nil, &SchemaError{Field: "vulnerabilities", Reason: "missing 'vulnerabilities' key in response"}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &SchemaError{Field: "vulnerabilities", Reason: fmt.Sprintf("must be a list, got %s", typeName(raw))}
	}
	return items, nil
}

// NewCandidate is the only way a detection entry becomes a Candidate. Every
// required field is checked; a failing entry is rejected whole. cve_ids and
// affected_assets are the only coerced fields: anything that is not a list
// becomes an empty list.
func NewCandidate(raw any) (*Candidate, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &SchemaError{Reason: fmt.Sprintf("candidate must be an object, got %s", typeName(raw))}
	}

	c := &Candidate{}
	var err error

	if c.Title, err = requiredText(m, "title", MinTitleLength); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(c.Title); n > MaxTitleLength {
		return nil, &SchemaError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters (got %d)", MaxTitleLength, n)}
	}

	severity, err := requiredText(m, "severity", 1)
	if err != nil {
		return nil, err
	}
	c.Severity = strings.ToLower(severity)
	if !validSeverities[c.Severity] {
		return nil, &SchemaError{Field: "severity", Reason: fmt.Sprintf("invalid severity %q, expected one of %s", severity, strings.Join(Severities, ", "))}
	}

	if c.CVSSScore, err = cvssScore(m); err != nil {
		return nil, err
	}

	if c.FindingType, err = requiredText(m, "finding_type", 1); err != nil {
		return nil, err
	}
	if c.Description, err = requiredText(m, "description", MinDescriptionLength); err != nil {
		return nil, err
	}
	if c.Remediation, err = requiredText(m, "remediation", MinRemediationLength); err != nil {
		return nil, err
	}
	if c.BusinessImpact, err = requiredText(m, "business_impact", MinBusinessImpactLength); err != nil {
		return nil, err
	}

	c.CVEIDs = stringList(m["cve_ids"])
	c.AffectedAssets = stringList(m["affected_assets"])

	if s, ok := m["evidence"].(string); ok {
		c.Evidence = strings.TrimSpace(s)
	}
	if v, ok := number(m["confidence_score"]); ok && v >= 0 && v <= 1 {
		c.ConfidenceScore = &v
	}
	if s, ok := m["exploitation_complexity"].(string); ok {
		if s = strings.ToLower(strings.TrimSpace(s)); validComplexities[s] {
			c.ExploitationComplexity = s
		}
	}
	if b, ok := m["cvss_breakdown"].(map[string]any); ok {
		c.CVSSBreakdown = breakdown(b, c)
	}

	return c, nil
}

func requiredText(m map[string]any, field string, minLen int) (string, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return "", &SchemaError{Field: field, Reason: "missing required field"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &SchemaError{Field: field, Reason: fmt.Sprintf("must be a string, got %s", typeName(raw))}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &SchemaError{Field: field, Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(s); n < minLen {
		return "", &SchemaError{Field: field, Reason: fmt.Sprintf("must be at least %d characters (got %d)", minLen, n)}
	}
	return s, nil
}

func cvssScore(m map[string]any) (float64, error) {
	raw, ok := m["cvss_score"]
	if !ok || raw == nil {
		return 0, &SchemaError{Field: "cvss_score", Reason: "missing required field"}
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return 0, &SchemaError{Field: "cvss_score", Reason: "must not be empty"}
	}
	v, ok := number(raw)
	if !ok {
		return 0, &SchemaError{Field: "cvss_score", Reason: fmt.Sprintf("must be a number, got %v", raw)}
	}
	if v < 0 || v > 10 {
		return 0, &SchemaError{Field: "cvss_score", Reason: fmt.Sprintf("must be between 0.0 and 10.0 (got %.1f)", v)}
	}
	return v, nil
}

// number accepts JSON numbers and numeric strings.
func number(raw any) (float64, bool) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func breakdown(m map[string]any, c *Candidate) *CVSSBreakdown {
	b := &CVSSBreakdown{Score: c.CVSSScore, Severity: c.Severity}
	if v, ok := number(m["score"]); ok {
		b.Score = v
	}
	if s, ok := m["severity"].(string); ok && s != "" {
		b.Severity = strings.ToLower(s)
	}
	if s, ok := m["guidance"].(string); ok {
		b.Guidance = s
	}
	return b
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

package engine

import "github.com/user/fricadelle/pkg/prompt"

// DefaultConfidence applies to candidates that no validation pass scored.
const DefaultConfidence = 0.7

// Enrich fills the derived fields the model may have left out. Fields that
// are already set are never touched, so Enrich is idempotent.
func Enrich(c *Candidate) {
	if c.CVSSBreakdown == nil {
		c.CVSSBreakdown = &CVSSBreakdown{
			Score:    c.CVSSScore,
			Severity: c.Severity,
			Guidance: prompt.CVSSGuidance(c.Severity),
		}
	}
	if c.ConfidenceScore == nil {
		confidence := DefaultConfidence
		c.ConfidenceScore = &confidence
	}
	if c.ExploitationComplexity == "" {
		c.ExploitationComplexity = ComplexityFromCVSS(c.CVSSScore)
	}
	if c.Evidence == "" {
		c.Evidence = NoEvidence
	}
}

// ComplexityFromCVSS maps a score to an exploitation complexity: the higher
// the score, the easier the exploitation is assumed to be.
func ComplexityFromCVSS(score float64) string {
	switch {
	case score >= 9.0:
		return "low"
	case score >= 7.0:
		return "medium"
	default:
		return "high"
	}
}

package engine

// Severity levels accepted from the model, lowercase.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Severities lists the accepted severities from most to least severe.
var Severities = []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

const (
	StatusOpen = "open"

	// NoEvidence is stored when the model did not quote any evidence.
	NoEvidence = "no evidence available"
)

// CVSSBreakdown cross-references a finding's score with its severity band.
type CVSSBreakdown struct {
	Score    float64 `json:"score"`
	Severity string  `json:"severity"`
	Guidance string  `json:"guidance"`
}

// SourceReference points back to the unit a finding was extracted from.
type SourceReference struct {
	Tool      string `json:"tool"`
	RawOutput string `json:"raw_output"`
}

// Finding is an accepted, enriched security finding.
type Finding struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Severity               string          `json:"severity"`
	CVSSScore              float64         `json:"cvss_score"`
	CVEIDs                 []string        `json:"cve_ids"`
	FindingType            string          `json:"finding_type"`
	Description            string          `json:"description"`
	Remediation            string          `json:"remediation"`
	BusinessImpact         string          `json:"business_impact"`
	SourceData             SourceReference `json:"source_data"`
	AffectedAssets         []string        `json:"affected_assets"`
	Evidence               string          `json:"evidence"`
	ConfidenceScore        float64         `json:"confidence_score"`
	ExploitationComplexity string          `json:"exploitation_complexity"`
	CVSSBreakdown          *CVSSBreakdown  `json:"cvss_breakdown,omitempty"`
	Status                 string          `json:"status"`
}

// Candidate is a record extracted by a detection call that passed
// record-level validation but has not been accepted yet. Optional fields the
// model may omit are pointers or empty strings so the Enricher can tell
// "absent" from "set".
type Candidate struct {
	Title                  string         `json:"title"`
	Severity               string         `json:"severity"`
	CVSSScore              float64        `json:"cvss_score"`
	CVEIDs                 []string       `json:"cve_ids"`
	FindingType            string         `json:"finding_type"`
	Description            string         `json:"description"`
	Remediation            string         `json:"remediation"`
	BusinessImpact         string         `json:"business_impact"`
	AffectedAssets         []string       `json:"affected_assets"`
	Evidence               string         `json:"evidence,omitempty"`
	ConfidenceScore        *float64       `json:"confidence_score,omitempty"`
	ExploitationComplexity string         `json:"exploitation_complexity,omitempty"`
	CVSSBreakdown          *CVSSBreakdown `json:"cvss_breakdown,omitempty"`
}

// toFinding freezes an enriched candidate into a Finding. The id is the
// caller's to assign; it never changes afterwards.
func (c *Candidate) toFinding(id string, src SourceReference) Finding {
	f := Finding{
		ID:                     id,
		Title:                  c.Title,
		Severity:               c.Severity,
		CVSSScore:              c.CVSSScore,
		CVEIDs:                 append([]string{}, c.CVEIDs...),
		FindingType:            c.FindingType,
		Description:            c.Description,
		Remediation:            c.Remediation,
		BusinessImpact:         c.BusinessImpact,
		SourceData:             src,
		AffectedAssets:         append([]string{}, c.AffectedAssets...),
		Evidence:               c.Evidence,
		ConfidenceScore:        DefaultConfidence,
		ExploitationComplexity: c.ExploitationComplexity,
		Status:                 StatusOpen,
	}
	if c.ConfidenceScore != nil {
		f.ConfidenceScore = *c.ConfidenceScore
	}
	if f.Evidence == "" {
		f.Evidence = NoEvidence
	}
	if c.CVSSBreakdown != nil {
		b := *c.CVSSBreakdown
		f.CVSSBreakdown = &b
	}
	return f
}

package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Field length limits, in characters, quoted in the detection prompt and
// enforced on the model's answer.
const (
	MinTitleLength          = 10
	MaxTitleLength          = 200
	MinDescriptionLength    = 100
	MinRemediationLength    = 80
	MinBusinessImpactLength = 50
)

// Band is one severity level with its CVSS range.
type Band struct {
	Name    string
	Range   string
	Meaning string
}

// Bands lists the CVSS bands, most severe first.
var Bands = []Band{
	{Name: "CRITICAL", Range: "9.0-10.0", Meaning: "immediate unauthorized access, valid credentials, RCE"},
	{Name: "HIGH", Range: "7.0-8.9", Meaning: "likely exploitation with significant impact"},
	{Name: "MEDIUM", Range: "4.0-6.9", Meaning: "moderate impact or complex exploitation"},
	{Name: "LOW", Range: "0.1-3.9", Meaning: "minimal impact or minor information"},
	{Name: "INFO", Range: "0.0", Meaning: "information only, no risk"},
}

// CVSSGuidance returns the band description for a severity, or an empty
// string for an unknown severity.
func CVSSGuidance(severity string) string {
	for _, b := range Bands {
		if strings.EqualFold(b.Name, severity) {
			return fmt.Sprintf("CVSS %s: %s", b.Range, b.Meaning)
		}
	}
	return ""
}

// Detection builds the extraction prompt for one unit.
func Detection(rawData, filename string) string {
	return render("detection.tmpl", map[string]any{
		"Filename":          filename,
		"RawData":           rawData,
		"Bands":             Bands,
		"MinTitle":          MinTitleLength,
		"MaxTitle":          MaxTitleLength,
		"MinDescription":    MinDescriptionLength,
		"MinRemediation":    MinRemediationLength,
		"MinBusinessImpact": MinBusinessImpactLength,
	})
}

// Validation builds the corroboration prompt for a single candidate, which
// is embedded as indented JSON.
func Validation(candidate any, rawData string) string {
	encoded, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%+v", candidate))
	}
	return render("validation.tmpl", map[string]any{
		"Candidate": string(encoded),
		"RawData":   rawData,
	})
}

// render executes a template that only reads strings and ints from data, so
// execution cannot fail for any argument values.
func render(name string, data map[string]any) string {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		panic(fmt.Sprintf("prompt: failed to execute template %s: %v", name, err))
	}
	return sb.String()
}

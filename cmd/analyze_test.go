package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fricadelle/pkg/engine"
)

const ftpRecord = `{"vulnerabilities": [{
  "title": "Anonymous FTP login allowed",
  "severity": "HIGH",
  "cvss_score": 7.5,
  "cve_ids": ["CVE-1999-0497"],
  "finding_type": "misconfiguration",
  "description": "The FTP service on port 21 accepts the anonymous account without a password, which lets any remote user list and download files from the server.",
  "remediation": "Disable anonymous access in the vsftpd configuration by setting anonymous_enable=NO and restart the service.",
  "business_impact": "Confidential files stored on the server can be read by anyone on the network.",
  "affected_assets": ["10.0.0.5:21"],
  "evidence": "230 Login successful."
}]}`

// ollamaStub answers detection prompts with ftpRecord and validation prompts
// with an acceptance at 0.9.
func ollamaStub(t *testing.T, validations *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.Equal(t, "/api/generate", r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		text := ftpRecord
		if strings.Contains(req.Prompt, "VALIDATE a detected vulnerability") {
			atomic.AddInt32(validations, 1)
			text = `{"is_valid": true, "confidence": 0.9, "issues": [], "suggestions": []}`
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"response": text, "done": true}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func analyzeFixture(t *testing.T, ollamaURL string) (cfgPath, scansDir, output string) {
	dir := t.TempDir()
	scansDir = filepath.Join(dir, "scans")
	require.NoError(t, os.MkdirAll(scansDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scansDir, "ftp.txt"), []byte("21/tcp open ftp vsftpd 3.0.3\n230 Login successful.\n"), 0644))

	cfgPath = filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf("selected_provider: ollama\nselected_model: test-model\nproviders:\n  ollama:\n    base_url: %s\naudit:\n  client_name: ACME\n", ollamaURL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0600))
	return cfgPath, scansDir, filepath.Join(dir, "out", "findings.json")
}

func resetNoValidation(t *testing.T) {
	t.Cleanup(func() {
		_ = analyzeCmd.Flags().Set("no-validation", "false")
		noValidation = false
	})
}

func TestAnalyzeWritesBundle(t *testing.T) {
	resetNoValidation(t)
	var validations int32
	srv := ollamaStub(t, &validations)
	cfgPath, scansDir, output := analyzeFixture(t, srv.URL)

	out := run(t, "--config", cfgPath, "analyze", "--scans-dir", scansDir, "--output", output, "--workers", "2", "--no-validation=false")

	assert.Contains(t, out, "Total: 1 findings")
	assert.Contains(t, out, "High:     1")
	assert.Contains(t, out, "Findings saved: "+output)
	assert.Equal(t, int32(1), atomic.LoadInt32(&validations))

	bundle, err := engine.LoadBundle(output)
	require.NoError(t, err)
	require.Len(t, bundle.Findings, 1)
	f := bundle.Findings[0]
	assert.Equal(t, "Anonymous FTP login allowed", f.Title)
	assert.Equal(t, "ftp.txt", f.SourceData.Tool)
	assert.InDelta(t, 0.9, f.ConfidenceScore, 1e-9)

	assert.Equal(t, "ACME", bundle.AuditMetadata.ClientName)
	assert.Equal(t, "test-model", bundle.AuditMetadata.AIModel)
	assert.NotEmpty(t, bundle.AuditMetadata.RunID)
	assert.Equal(t, []string{"ftp.txt"}, bundle.ProcessingInfo.ProcessedFiles)
	assert.Empty(t, bundle.ProcessingInfo.Errors)
}

func TestAnalyzeWithoutValidation(t *testing.T) {
	resetNoValidation(t)
	var validations int32
	srv := ollamaStub(t, &validations)
	cfgPath, scansDir, output := analyzeFixture(t, srv.URL)

	out := run(t, "--config", cfgPath, "analyze", "--scans-dir", scansDir, "--output", output, "--workers", "1", "--no-validation")

	assert.Contains(t, out, "Total: 1 findings")
	assert.Equal(t, int32(0), atomic.LoadInt32(&validations))

	bundle, err := engine.LoadBundle(output)
	require.NoError(t, err)
	require.Len(t, bundle.Findings, 1)
	assert.Equal(t, "ftp.txt", bundle.Findings[0].SourceData.Tool)
	assert.InDelta(t, engine.DefaultConfidence, bundle.Findings[0].ConfidenceScore, 1e-9)
}

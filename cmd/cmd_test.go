package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/fricadelle/pkg/engine"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	mk := func(titles ...string) *engine.Bundle {
		var findings []engine.Finding
		for _, title := range titles {
			findings = append(findings, engine.Finding{Title: title, Severity: "high", FindingType: "misconfiguration", SourceData: engine.SourceReference{Tool: "nmap.xml"}})
		}
		return engine.BuildBundle(engine.AuditMetadata{}, engine.Aggregate(findings, nil, nil), time.Now())
	}
	baseline := filepath.Join(dir, "baseline.json")
	current := filepath.Join(dir, "current.json")
	require.NoError(t, engine.SaveBundle(baseline, mk("Anonymous FTP login allowed", "Telnet service exposed")))
	require.NoError(t, engine.SaveBundle(current, mk("Anonymous FTP login allowed", "SMB signing disabled")))

	out := run(t, "--config", cfgPath, "diff", baseline, current)

	assert.Contains(t, out, "vs baseline.json")
	assert.Contains(t, out, "NEW RISKS: 1")
	assert.Contains(t, out, "SMB signing disabled")
	assert.Contains(t, out, "FIXED RISKS: 1")
	assert.Contains(t, out, "UNCHANGED RISKS: 1")
}

func TestConfigSetKeyAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out := run(t, "--config", cfgPath, "config", "set-key", "openai", "--key", "sk-secret-value")
	assert.Contains(t, out, "Settings saved for provider: openai")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sk-secret-value")

	out = run(t, "--config", cfgPath, "config", "show")
	assert.Contains(t, out, "sk-s***********")
	assert.NotContains(t, out, "sk-secret-value")
}

func resetDebug(t *testing.T) {
	t.Cleanup(func() {
		_ = rootCmd.PersistentFlags().Set("debug", "false")
		DebugMode = false
	})
}

func TestConfigSetKeyKeepsEnvironmentOutOfFile(t *testing.T) {
	resetDebug(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("FRICADELLE_GEMINI_API_KEY", "env-only-gemini-secret")

	run(t, "--debug", "--config", cfgPath, "config", "set-key", "openai", "--key", "sk-file-key")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	saved := string(data)
	assert.Contains(t, saved, "sk-file-key")
	assert.NotContains(t, saved, "env-only-gemini-secret")
	assert.NotContains(t, saved, "level: debug")
	assert.Contains(t, saved, "level: info")
}

func TestConfigSetModelPersistsOnlyRequestedChange(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("providers:\n  openai:\n    api_key: sk-from-file\n"), 0600))
	t.Setenv("FRICADELLE_ANALYSIS_WORKERS", "9")
	t.Setenv("FRICADELLE_OPENAI_API_KEY", "sk-from-env")

	out := run(t, "--config", cfgPath, "config", "set-model", "--provider", "OpenAI", "--model", "gpt-4o-mini")
	assert.Contains(t, out, "Provider=openai, Model=gpt-4o-mini")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	saved := string(data)
	assert.Contains(t, saved, "selected_provider: openai")
	assert.Contains(t, saved, "selected_model: gpt-4o-mini")
	assert.Contains(t, saved, "sk-from-file")
	assert.NotContains(t, saved, "sk-from-env")
	assert.Contains(t, saved, "workers: 1")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "abcd**", mask("abcdef"))
}

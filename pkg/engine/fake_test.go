package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/user/fricadelle/pkg/adk"
)

type reply struct {
	text string
	err  error
}

// fakeService scripts model replies. Detection prompts are routed by the
// filename they embed and consume their script in order, repeating the last
// entry. Validation prompts go to validate, or accept with 0.9 when unset.
type fakeService struct {
	mu          sync.Mutex
	detections  map[string][]reply
	validate    func(prompt string) reply
	calls       map[string]int
	validations int
}

func newFakeService() *fakeService {
	return &fakeService{detections: map[string][]reply{}, calls: map[string]int{}}
}

func (f *fakeService) script(filename string, replies ...reply) *fakeService {
	f.detections[filename] = replies
	return f
}

func (f *fakeService) Generate(_ context.Context, _, prompt string, _ adk.GenerateOptions) (adk.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.Contains(prompt, "VALIDATE a detected vulnerability") {
		f.validations++
		if f.validate == nil {
			return adk.Response{Text: `{"is_valid": true, "confidence": 0.9}`}, nil
		}
		r := f.validate(prompt)
		return adk.Response{Text: r.text}, r.err
	}

	name := promptFilename(prompt)
	f.calls[name]++
	script := f.detections[name]
	if len(script) == 0 {
		return adk.Response{Text: `{"vulnerabilities": []}`}, nil
	}
	i := f.calls[name] - 1
	if i >= len(script) {
		i = len(script) - 1
	}
	return adk.Response{Text: script[i].text}, script[i].err
}

func (f *fakeService) callsFor(filename string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[filename]
}

func promptFilename(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "File: ")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "\n")
	return name
}

func zeroBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func validRecord() map[string]any {
	return map[string]any{
		"title":           "Anonymous FTP login allowed",
		"severity":        "HIGH",
		"cvss_score":      7.5,
		"cve_ids":         []any{"CVE-1999-0497"},
		"finding_type":    "misconfiguration",
		"description":     "The FTP service on port 21 accepts the anonymous account without a password, which lets any remote user list and download files from the server.",
		"remediation":     "Disable anonymous access in the vsftpd configuration by setting anonymous_enable=NO and restart the service.",
		"business_impact": "Confidential files stored on the server can be read by anyone on the network.",
		"affected_assets": []any{"10.0.0.5:21"},
		"evidence":        "230 Login successful.",
	}
}

func detectionReply(records ...map[string]any) string {
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, r)
	}
	data, err := json.Marshal(map[string]any{"vulnerabilities": items})
	if err != nil {
		panic(err)
	}
	return string(data)
}

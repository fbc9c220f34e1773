package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrentAccept(t *testing.T) {
	c := NewCollector()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cand := &Candidate{Title: fmt.Sprintf("finding %d", i), Severity: SeverityLow}
			c.Accept(cand, SourceReference{Tool: fmt.Sprintf("unit-%02d", i)}, 0)
			c.AddErrors(ErrorRecord{SourceFile: "x", Attempt: 1, Kind: KindParse})
			c.MarkProcessed(fmt.Sprintf("unit-%02d", i))
		}(i)
	}
	wg.Wait()

	findings, errs, processed := c.Snapshot()
	require.Len(t, findings, workers)
	assert.Len(t, errs, workers)
	assert.Len(t, processed, workers)

	ids := make(map[string]bool)
	for _, f := range findings {
		ids[f.ID] = true
	}
	assert.Len(t, ids, workers, "ids are unique")
	for i := 1; i <= workers; i++ {
		assert.True(t, ids[fmt.Sprintf("VULN-%03d", i)], "VULN-%03d assigned", i)
	}
}

func TestCollectorSnapshotOrder(t *testing.T) {
	c := NewCollector()
	c.Accept(&Candidate{Title: "b-1"}, SourceReference{Tool: "b.txt"}, 1)
	c.Accept(&Candidate{Title: "a-0"}, SourceReference{Tool: "a.txt"}, 0)
	c.Accept(&Candidate{Title: "b-0"}, SourceReference{Tool: "b.txt"}, 0)

	findings, _, _ := c.Snapshot()

	var titles []string
	for _, f := range findings {
		titles = append(titles, f.Title)
	}
	assert.Equal(t, []string{"a-0", "b-0", "b-1"}, titles)
	assert.Equal(t, "VULN-002", findings[0].ID, "ids keep their acceptance order")
}

func TestAcceptFreezesCandidate(t *testing.T) {
	c := NewCollector()
	cand := &Candidate{Title: "Exposed admin panel", CVEIDs: []string{"CVE-2021-1"}}

	f := c.Accept(cand, SourceReference{Tool: "nikto.txt", RawOutput: "+ /admin/"}, 0)
	cand.CVEIDs[0] = "changed"

	assert.Equal(t, "VULN-001", f.ID)
	assert.Equal(t, []string{"CVE-2021-1"}, f.CVEIDs)
	assert.Equal(t, StatusOpen, f.Status)
	assert.Equal(t, NoEvidence, f.Evidence)
	assert.Equal(t, DefaultConfidence, f.ConfidenceScore)
	assert.Equal(t, "+ /admin/", f.SourceData.RawOutput)
}

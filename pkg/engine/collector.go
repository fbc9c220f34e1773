package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Collector is the single serialized append point shared by the pipeline
// workers. It owns the finding id counter, the error ledger and the list of
// processed units.
type Collector struct {
	mu        sync.Mutex
	findings  []collected
	errors    []ErrorRecord
	processed []string
	nextID    int
}

type collected struct {
	finding Finding
	order   int
}

func NewCollector() *Collector {
	return &Collector{nextID: 1}
}

// Accept turns an enriched candidate into a Finding with the next sequential
// id. order is the candidate's position among its unit's accepted findings.
func (c *Collector) Accept(cand *Candidate, src SourceReference, order int) Finding {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := cand.toFinding(fmt.Sprintf("VULN-%03d", c.nextID), src)
	c.nextID++
	c.findings = append(c.findings, collected{finding: f, order: order})
	return f
}

func (c *Collector) AddErrors(records ...ErrorRecord) {
	if len(records) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, records...)
}

func (c *Collector) MarkProcessed(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = append(c.processed, filename)
}

// Snapshot returns copies of the collected state. Findings are sorted by
// source file, then by detection order within the file.
func (c *Collector) Snapshot() ([]Finding, []ErrorRecord, []string) {
	c.mu.Lock()
	items := append([]collected(nil), c.findings...)
	errs := append([]ErrorRecord{}, c.errors...)
	processed := append([]string{}, c.processed...)
	c.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.finding.SourceData.Tool != b.finding.SourceData.Tool {
			return a.finding.SourceData.Tool < b.finding.SourceData.Tool
		}
		return a.order < b.order
	})

	findings := make([]Finding, 0, len(items))
	for _, it := range items {
		findings = append(findings, it.finding)
	}
	return findings, errs, processed
}

package reconcile

import "time"

// Mismatch records one harvested/report value pair that disagreed.
type Mismatch struct {
	Field        string `json:"field"`
	CrawlerValue string `json:"crawlerValue"`
	ReportValue  string `json:"reportValue"`
}

// MissingItem records an auto-verifiable checklist item whose backing
// field never showed up in the harvested data.
type MissingItem struct {
	Field           string `json:"field"`
	ChecklistItemID string `json:"checklistItemId"`
}

// Report is the consistency report produced once per completed job.
// It is a point-in-time snapshot and is never recomputed.
type Report struct {
	ValidationScore int           `json:"validationScore"`
	IsValid         bool          `json:"isValid"`
	Mismatches      []Mismatch    `json:"mismatches"`
	MissingItems    []MissingItem `json:"missingItems"`
	CorrectedFields []string      `json:"correctedFields"`
	GeneratedAt     time.Time     `json:"generatedAt"`
}

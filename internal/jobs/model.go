package jobs

import (
	"time"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/checklist"
	"shoplens-backend/internal/harvest"
	"shoplens-backend/internal/reconcile"
)

const (
	KindProduct = "product"
	KindShop    = "shop"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Progress tracks how far a job has advanced through its pipeline.
// Percentage never regresses within a job's lifetime.
type Progress struct {
	Stage      string `json:"stage"`
	Percentage int    `json:"percentage"`
}

// StageOutput is the committed output of one pipeline stage. Exactly
// one payload pointer is set, matching Stage.
type StageOutput struct {
	Stage       string            `json:"stage"`
	Crawl       *harvest.Result   `json:"crawl,omitempty"`
	Analysis    *analyze.Result   `json:"analysis,omitempty"`
	Checklist   *checklist.Result `json:"checklist,omitempty"`
	Validation  *reconcile.Report `json:"validation,omitempty"`
	CommittedAt time.Time         `json:"committedAt"`
}

// Result is the final artifact of a completed job.
type Result struct {
	Harvested  *harvest.Result   `json:"harvested,omitempty"`
	Analysis   *analyze.Result   `json:"analysis,omitempty"`
	Checklist  *checklist.Result `json:"checklist,omitempty"`
	Validation *reconcile.Report `json:"validation,omitempty"`
}

// AnalysisJob is one analysis of a single source URL driven through
// the stage pipeline. Status only moves forward; completed and failed
// are terminal.
type AnalysisJob struct {
	ID           string            `json:"id"`
	BatchID      string            `json:"batchId,omitempty"`
	SourceRef    string            `json:"sourceRef"`
	Kind         string            `json:"kind"`
	Status       string            `json:"status"`
	Progress     Progress          `json:"progress"`
	StageOutputs []StageOutput     `json:"stageOutputs,omitempty"`
	Result       *Result           `json:"result,omitempty"`
	Validation   *reconcile.Report `json:"validation,omitempty"`
	ErrorMessage *string           `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has reached a sticky final status.
func (j *AnalysisJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Output returns the committed output for a stage, if present.
func (j *AnalysisJob) Output(stage string) (StageOutput, bool) {
	for _, out := range j.StageOutputs {
		if out.Stage == stage {
			return out, true
		}
	}
	return StageOutput{}, false
}

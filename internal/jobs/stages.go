package jobs

// Stage names, in pipeline order.
const (
	StageCrawling   = "crawling"
	StageAnalyzing  = "analyzing"
	StageChecklist  = "evaluating-checklist"
	StageValidating = "validating"
)

// stageWeights maps each stage to the progress percentage reported
// once it commits. Completion is always 100.
var stageWeights = map[string]int{
	StageCrawling:   30,
	StageAnalyzing:  55,
	StageChecklist:  75,
	StageValidating: 90,
}

var (
	productStages = []string{StageCrawling, StageAnalyzing, StageChecklist, StageValidating}
	// Shops have no single report artifact to reconcile against, so
	// the validating stage is skipped for storefronts.
	shopStages = []string{StageCrawling, StageAnalyzing, StageChecklist}
)

// StageSequence returns the ordered stage list for a job kind.
func StageSequence(kind string) []string {
	if kind == KindShop {
		return shopStages
	}
	return productStages
}

// StageWeight returns the committed-progress percentage for a stage.
func StageWeight(stage string) int {
	return stageWeights[stage]
}

// nextStage returns the immediate successor of current within the
// sequence for kind. An empty current selects the first stage. The
// second return is false when current is the last stage or unknown.
func nextStage(kind, current string) (string, bool) {
	seq := StageSequence(kind)
	if current == "" {
		return seq[0], true
	}
	for i, s := range seq {
		if s == current {
			if i+1 < len(seq) {
				return seq[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

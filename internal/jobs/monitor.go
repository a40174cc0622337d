package jobs

import (
	"sort"
	"sync"
	"time"
)

// Monitor records per-stage pipeline outcomes. Recording is
// best-effort: runner code never fails a job because a stat could not
// be written.
type Monitor interface {
	RecordStage(stage string, success bool, duration time.Duration)
	Snapshot() []StageStats
}

// StageStats is the aggregate view of one pipeline stage.
type StageStats struct {
	Stage         string  `json:"stage"`
	Total         int     `json:"total"`
	SuccessCount  int     `json:"successCount"`
	FailureCount  int     `json:"failureCount"`
	SuccessRate   float64 `json:"successRate"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}

type stageAgg struct {
	total      int
	success    int
	failure    int
	durationMs float64
}

// MemoryMonitor aggregates stage stats in memory.
type MemoryMonitor struct {
	mu     sync.Mutex
	stages map[string]*stageAgg
}

// NewMemoryMonitor constructs a MemoryMonitor.
func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{stages: make(map[string]*stageAgg)}
}

// RecordStage records one stage execution.
func (m *MemoryMonitor) RecordStage(stage string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.stages[stage]
	if !ok {
		agg = &stageAgg{}
		m.stages[stage] = agg
	}
	agg.total++
	if success {
		agg.success++
	} else {
		agg.failure++
	}
	agg.durationMs += float64(duration) / float64(time.Millisecond)
}

// Snapshot returns current stats in pipeline order, with any stages
// outside the known sequence appended alphabetically.
func (m *MemoryMonitor) Snapshot() []StageStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.stages))
	ordered := make([]string, 0, len(m.stages))
	for _, stage := range productStages {
		if _, ok := m.stages[stage]; ok {
			ordered = append(ordered, stage)
			seen[stage] = true
		}
	}
	rest := make([]string, 0, len(m.stages))
	for stage := range m.stages {
		if !seen[stage] {
			rest = append(rest, stage)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	out := make([]StageStats, 0, len(ordered))
	for _, stage := range ordered {
		agg := m.stages[stage]
		stats := StageStats{
			Stage:        stage,
			Total:        agg.total,
			SuccessCount: agg.success,
			FailureCount: agg.failure,
		}
		if agg.total > 0 {
			stats.SuccessRate = float64(agg.success) / float64(agg.total)
			stats.AvgDurationMs = agg.durationMs / float64(agg.total)
		}
		out = append(out, stats)
	}
	return out
}

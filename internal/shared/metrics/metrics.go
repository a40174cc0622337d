package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	jobStartedTotal   atomic.Uint64
	jobCompletedTotal atomic.Uint64
	jobFailedTotal    atomic.Uint64

	jobDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})

	stageMu        sync.Mutex
	stageDurations = map[string]*histogram{}
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobStartedTotal.Add(1)
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted() {
	jobCompletedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobFailedTotal.Add(1)
}

// ObserveJobDurationMs records an end-to-end job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// ObserveStageDurationMs records a pipeline stage duration in milliseconds.
func ObserveStageDurationMs(stage string, value float64) {
	if value < 0 {
		value = 0
	}
	stageMu.Lock()
	h, ok := stageDurations[stage]
	if !ok {
		h = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000})
		stageDurations[stage] = h
	}
	stageMu.Unlock()
	h.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_jobs_started_total", "Total analysis jobs started", jobStartedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Total analysis jobs completed", jobCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Total analysis jobs failed", jobFailedTotal.Load())
	writeHistogram(&buf, "analysis_job_duration_ms", "", "End-to-end job duration in milliseconds", jobDuration.Snapshot())

	stageMu.Lock()
	stages := make([]string, 0, len(stageDurations))
	for stage := range stageDurations {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	snaps := make(map[string]histogramSnapshot, len(stages))
	for _, stage := range stages {
		snaps[stage] = stageDurations[stage].Snapshot()
	}
	stageMu.Unlock()

	for _, stage := range stages {
		writeHistogram(&buf, "pipeline_stage_duration_ms", fmt.Sprintf("stage=%q", stage), "Pipeline stage duration in milliseconds", snaps[stage])
	}
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, labels, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{%s} %d\n", name, joinLabels(labels, fmt.Sprintf("le=%q", formatFloat(bound))), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{%s} %d\n", name, joinLabels(labels, `le="+Inf"`), snap.count)
	fmt.Fprintf(buf, "%s_sum%s %s\n", name, wrapLabels(labels), formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count%s %d\n", name, wrapLabels(labels), snap.count)
}

func joinLabels(labels, le string) string {
	if labels == "" {
		return le
	}
	return labels + "," + le
}

func wrapLabels(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}

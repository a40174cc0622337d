package jobs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shoplens-backend/internal/report"
	"shoplens-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the jobs service.
type Handler struct {
	Svc      *Service
	Renderer *report.Renderer
	Monitor  Monitor

	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, renderer *report.Renderer, monitor Monitor) *Handler {
	return &Handler{
		Svc:      svc,
		Renderer: renderer,
		Monitor:  monitor,
		limiter:  newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.submitAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/download", h.downloadReport)
	rg.POST("/batch/analyses", h.submitBatch)
	rg.GET("/batch/analyses/:batchId", h.batchStatus)
	rg.GET("/history/trend", h.scoreTrend)
	rg.GET("/pipeline/stats", h.pipelineStats)
}

type submitRequest struct {
	SourceRef string `json:"sourceRef"`
}

func (h *Handler) submitAnalysis(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be JSON with a sourceRef field", nil)
		return
	}

	job, err := h.Svc.Submit(c.Request.Context(), req.SourceRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSource):
			respond.Error(c, http.StatusBadRequest, "validation_error", "sourceRef must be an absolute http(s) URL", []map[string]string{
				{"field": "sourceRef", "issue": "invalid_url"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit analysis", nil)
		}
		return
	}

	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":        job.ID,
		"kindDetected": job.Kind,
		"status":       job.Status,
	})
}

type submitBatchRequest struct {
	SourceRefs []string `json:"sourceRefs"`
}

func (h *Handler) submitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be JSON with a sourceRefs array", nil)
		return
	}

	sub, err := h.Svc.SubmitBatch(c.Request.Context(), req.SourceRefs)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadBatch):
			respond.Error(c, http.StatusBadRequest, "validation_error", "sourceRefs must carry between 1 and 20 URLs", []map[string]string{
				{"field": "sourceRefs", "issue": "bad_size"},
			})
		case errors.Is(err, ErrBadSource):
			respond.Error(c, http.StatusBadRequest, "validation_error", "sourceRefs must contain at least one absolute http(s) URL", []map[string]string{
				{"field": "sourceRefs", "issue": "invalid_url"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit batch", nil)
		}
		return
	}

	jobItems := make([]gin.H, 0, len(sub.Jobs))
	for _, job := range sub.Jobs {
		jobItems = append(jobItems, gin.H{
			"jobId":        job.ID,
			"sourceRef":    job.SourceRef,
			"kindDetected": job.Kind,
			"status":       job.Status,
		})
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"batchId":  sub.BatchID,
		"jobs":     jobItems,
		"rejected": sub.Rejected,
	})
}

func (h *Handler) batchStatus(c *gin.Context) {
	batchID := c.Param("batchId")
	status, err := h.Svc.BatchStatus(c.Request.Context(), batchID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "batch not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch batch", nil)
		}
		return
	}

	items := make([]gin.H, 0, len(status.Jobs))
	for _, job := range status.Jobs {
		item := gin.H{
			"id":        job.ID,
			"sourceRef": job.SourceRef,
			"kind":      job.Kind,
			"status":    job.Status,
			"progress":  job.Progress,
		}
		if job.Status == StatusCompleted && job.Result != nil && job.Result.Analysis != nil {
			item["overallScore"] = job.Result.Analysis.OverallScore
			item["grade"] = job.Result.Analysis.Grade
		}
		if job.ErrorMessage != nil {
			item["error"] = *job.ErrorMessage
		}
		items = append(items, item)
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"batchId":   status.BatchID,
		"status":    status.Status,
		"total":     status.Total,
		"completed": status.Completed,
		"failed":    status.Failed,
		"pending":   status.Pending,
		"jobs":      items,
	})
}

func (h *Handler) scoreTrend(c *gin.Context) {
	sourceRef := c.Query("sourceRef")
	days := 30
	if v := c.Query("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}

	trend, err := h.Svc.ScoreTrend(c.Request.Context(), sourceRef, days)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSource):
			respond.Error(c, http.StatusBadRequest, "validation_error", "sourceRef query parameter is required", []map[string]string{
				{"field": "sourceRef", "issue": "required"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute score trend", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"sourceRef": sourceRef,
		"days":      days,
		"trend":     trend,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	if !h.limiter.Allow(jobID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "poll at most once per second per job", nil)
		return
	}

	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis job", nil)
		}
		return
	}

	c.Set("jobId", job.ID)
	c.Set("statusTransition", job.Status)

	resp := gin.H{
		"id":        job.ID,
		"sourceRef": job.SourceRef,
		"kind":      job.Kind,
		"status":    job.Status,
		"progress":  job.Progress,
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	}
	if job.Status == StatusCompleted && job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Status == StatusCompleted && job.Validation != nil {
		resp["validation"] = job.Validation
	}
	if job.ErrorMessage != nil {
		resp["error"] = *job.ErrorMessage
	}
	if job.CompletedAt != nil {
		resp["completedAt"] = job.CompletedAt
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	jobList, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analysis jobs", nil)
		return
	}

	resp := make([]gin.H, 0, len(jobList))
	for _, job := range jobList {
		item := gin.H{
			"id":        job.ID,
			"sourceRef": job.SourceRef,
			"kind":      job.Kind,
			"status":    job.Status,
			"progress":  job.Progress,
			"createdAt": job.CreatedAt,
		}
		if job.Status == StatusCompleted && job.Result != nil && job.Result.Analysis != nil {
			item["overallScore"] = job.Result.Analysis.OverallScore
			item["grade"] = job.Result.Analysis.Grade
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) downloadReport(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}
	format := c.DefaultQuery("format", report.FormatMarkdown)

	job, err := h.Svc.Get(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis job", nil)
		}
		return
	}
	if job.Status != StatusCompleted || job.Result == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "analysis has not completed yet", gin.H{"status": job.Status})
		return
	}

	generatedAt := job.UpdatedAt
	if job.CompletedAt != nil {
		generatedAt = *job.CompletedAt
	}
	body, err := h.Renderer.Render(c.Request.Context(), format, report.Input{
		SourceRef:   job.SourceRef,
		Kind:        job.Kind,
		Harvested:   job.Result.Harvested,
		Analysis:    job.Result.Analysis,
		Checklist:   job.Result.Checklist,
		Validation:  job.Result.Validation,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, report.ErrUnknownFormat):
			respond.Error(c, http.StatusBadRequest, "validation_error", "format must be markdown, json or html", []map[string]string{
				{"field": "format", "issue": "unknown_format"},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render report", nil)
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.Filename(job.ID, format)+`"`)
	c.Data(http.StatusOK, report.ContentType(format), body)
}

func (h *Handler) pipelineStats(c *gin.Context) {
	stats := []StageStats{}
	if h.Monitor != nil {
		stats = h.Monitor.Snapshot()
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"stages":      stats,
		"generatedAt": time.Now().UTC(),
	})
}

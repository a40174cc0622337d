package feedback

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shoplens-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the feedback service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches error-report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/error-reports", h.submitReport)
	rg.GET("/error-reports", h.listReports)
	rg.PATCH("/error-reports/:id/status", h.updateStatus)
	rg.GET("/crawler/priority-fields", h.priorityFields)
}

type submitReportRequest struct {
	AnalysisID   string `json:"analysisId"`
	FieldName    string `json:"fieldName"`
	IssueType    string `json:"issueType"`
	Severity     string `json:"severity"`
	CrawlerValue string `json:"crawlerValue"`
	ReportValue  string `json:"reportValue"`
	Description  string `json:"description"`
}

func (h *Handler) submitReport(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be JSON", nil)
		return
	}

	report, err := h.Svc.Submit(c.Request.Context(), SubmitInput{
		AnalysisID:   req.AnalysisID,
		FieldName:    req.FieldName,
		IssueType:    req.IssueType,
		Severity:     req.Severity,
		CrawlerValue: req.CrawlerValue,
		ReportValue:  req.ReportValue,
		Description:  req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit error report", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, gin.H{
		"errorReportId": report.ID,
		"status":        report.Status,
	})
}

func (h *Handler) listReports(c *gin.Context) {
	q := Query{
		FieldName: c.Query("fieldName"),
		Status:    c.Query("status"),
		Limit:     50,
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}

	reports, err := h.Svc.List(c.Request.Context(), q)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list error reports", nil)
		return
	}
	respond.JSON(c, http.StatusOK, reports)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	reportID := c.Param("id")
	if reportID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "error report id is required", nil)
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be JSON with a status field", nil)
		return
	}

	report, err := h.Svc.UpdateStatus(c.Request.Context(), reportID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "error report not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update error report", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, report)
}

func (h *Handler) priorityFields(c *gin.Context) {
	topK := 10
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	stats, err := h.Svc.PriorityStats(c.Request.Context(), topK)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to rank priority fields", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"priorityFields": stats})
}

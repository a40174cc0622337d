package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newFeedbackRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := &Service{Repo: NewMemoryRepo()}
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func TestSubmitReportReturns201(t *testing.T) {
	r, _ := newFeedbackRouter(t)

	body := strings.NewReader(`{"fieldName":"price.sale_price","issueType":"mismatch","severity":"high","crawlerValue":"4562","reportValue":"4500"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/error-reports", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if id, ok := payload["errorReportId"].(string); !ok || id == "" {
		t.Fatalf("expected errorReportId, got %v", payload)
	}
	if payload["status"] != StatusPending {
		t.Fatalf("expected pending status, got %v", payload["status"])
	}
}

func TestSubmitReportValidation(t *testing.T) {
	r, _ := newFeedbackRouter(t)

	body := strings.NewReader(`{"fieldName":"","issueType":"mismatch"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/error-reports", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	r, svc := newFeedbackRouter(t)
	report, err := svc.Submit(context.Background(), SubmitInput{FieldName: "product_name", IssueType: IssueMissing})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	body := strings.NewReader(`{"status":"resolved"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/error-reports/"+report.ID+"/status", body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated ErrorReport
	if err := json.Unmarshal(resp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Status != StatusResolved {
		t.Fatalf("expected resolved, got %q", updated.Status)
	}

	missing := httptest.NewRequest(http.MethodPatch, "/api/v1/error-reports/nope/status", strings.NewReader(`{"status":"resolved"}`))
	missing.Header.Set("Content-Type", "application/json")
	respMissing := httptest.NewRecorder()
	r.ServeHTTP(respMissing, missing)
	if respMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", respMissing.Code)
	}
}

func TestPriorityFieldsEndpoint(t *testing.T) {
	r, svc := newFeedbackRouter(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(ctx, SubmitInput{FieldName: "price.sale_price", IssueType: IssueMismatch}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if _, err := svc.Submit(ctx, SubmitInput{FieldName: "product_name", IssueType: IssueMissing}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/crawler/priority-fields?limit=1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		PriorityFields []PriorityStat `json:"priorityFields"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.PriorityFields) != 1 {
		t.Fatalf("expected 1 ranked field, got %d", len(payload.PriorityFields))
	}
	if payload.PriorityFields[0].FieldName != "price.sale_price" {
		t.Fatalf("expected price.sale_price first, got %q", payload.PriorityFields[0].FieldName)
	}
	if payload.PriorityFields[0].ReportCount != 2 {
		t.Fatalf("expected count 2, got %d", payload.PriorityFields[0].ReportCount)
	}
}

package feedback

import (
	"context"
	"errors"
	"testing"
	"time"
)

func submitN(t *testing.T, svc *Service, field string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := svc.Submit(context.Background(), SubmitInput{
			FieldName: field,
			IssueType: IssueMismatch,
			Severity:  SeverityMedium,
		}); err != nil {
			t.Fatalf("Submit %s: %v", field, err)
		}
	}
}

func TestSubmitDefaultsAndValidation(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	ctx := context.Background()

	report, err := svc.Submit(ctx, SubmitInput{
		FieldName: "price.sale_price",
		IssueType: IssueMismatch,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.Severity != SeverityMedium {
		t.Fatalf("expected default severity medium, got %q", report.Severity)
	}
	if report.Status != StatusPending {
		t.Fatalf("expected initial status pending, got %q", report.Status)
	}
	if report.ID == "" {
		t.Fatalf("expected generated id")
	}

	cases := []SubmitInput{
		{FieldName: "", IssueType: IssueMismatch},
		{FieldName: "price.sale_price", IssueType: "bogus"},
		{FieldName: "price.sale_price", IssueType: IssueMissing, Severity: "catastrophic"},
		{FieldName: "price.sale_price", IssueType: IssueMismatch, AnalysisID: "not-a-uuid"},
	}
	for i, in := range cases {
		if _, err := svc.Submit(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestPriorityFieldsOrderedByCount(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}

	submitN(t, svc, "price.sale_price", 3)
	submitN(t, svc, "reviews.review_count", 1)
	submitN(t, svc, "product_name", 2)

	fields, err := svc.PriorityFields(context.Background(), 10)
	if err != nil {
		t.Fatalf("PriorityFields: %v", err)
	}
	want := []string{"price.sale_price", "product_name", "reviews.review_count"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], fields[i])
		}
	}
}

func TestPriorityFieldsTieBreaksOnRecency(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now().UTC()

	// same count, the later report wins the tie
	older := ErrorReport{ID: "r1", FieldName: "images.image_count", IssueType: IssueMissing,
		Severity: SeverityLow, Status: StatusPending, CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(-time.Hour)}
	newer := ErrorReport{ID: "r2", FieldName: "product_name", IssueType: IssueMissing,
		Severity: SeverityLow, Status: StatusPending, CreatedAt: base, UpdatedAt: base}
	if err := repo.Create(ctx, older); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newer); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := &Service{Repo: repo}
	fields, err := svc.PriorityFields(ctx, 10)
	if err != nil {
		t.Fatalf("PriorityFields: %v", err)
	}
	if len(fields) != 2 || fields[0] != "product_name" || fields[1] != "images.image_count" {
		t.Fatalf("expected recency tie-break, got %v", fields)
	}
}

func TestPriorityFieldsRespectsTopK(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	submitN(t, svc, "a", 3)
	submitN(t, svc, "b", 2)
	submitN(t, svc, "c", 1)

	fields, err := svc.PriorityFields(context.Background(), 2)
	if err != nil {
		t.Fatalf("PriorityFields: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now().UTC()
	for i, r := range []ErrorReport{
		{ID: "r1", FieldName: "product_name", IssueType: IssueMismatch, Severity: SeverityLow, Status: StatusPending},
		{ID: "r2", FieldName: "price.sale_price", IssueType: IssueMissing, Severity: SeverityHigh, Status: StatusResolved},
		{ID: "r3", FieldName: "product_name", IssueType: IssueOther, Severity: SeverityLow, Status: StatusPending},
	} {
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		r.UpdatedAt = r.CreatedAt
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	svc := &Service{Repo: repo}

	all, err := svc.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" || all[2].ID != "r1" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	byField, err := svc.List(ctx, Query{FieldName: "product_name"})
	if err != nil {
		t.Fatalf("List by field: %v", err)
	}
	if len(byField) != 2 {
		t.Fatalf("expected 2 product_name reports, got %d", len(byField))
	}

	byStatus, err := svc.List(ctx, Query{Status: StatusResolved})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "r2" {
		t.Fatalf("expected resolved r2, got %+v", byStatus)
	}

	limited, err := svc.List(ctx, Query{Limit: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 report, got %d", len(limited))
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	ctx := context.Background()

	report, err := svc.Submit(ctx, SubmitInput{FieldName: "product_name", IssueType: IssueOther})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, report.ID, StatusReviewed)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != StatusReviewed {
		t.Fatalf("expected reviewed, got %q", updated.Status)
	}

	if _, err := svc.UpdateStatus(ctx, report.ID, "archived"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", StatusResolved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package checklist

import (
	"context"
	"testing"

	"shoplens-backend/internal/harvest"
)

func fullProduct() *harvest.Result {
	return &harvest.Result{
		Kind: harvest.KindProduct,
		Product: &harvest.ProductFields{
			ProductName: "セラミックマグ 350ml 北欧デザイン",
			Price:       harvest.PriceInfo{SalePrice: "4,562", OriginalPrice: "5,800", DiscountRate: 21},
			Shipping:    harvest.ShippingInfo{ShippingFee: "500", FreeShippingThreshold: "3,980"},
			ReviewCount: 128,
			ImageCount:  7,
			QpointRate:  3,
			HasCoupon:   true,
		},
	}
}

func TestNewEvaluatorParsesCatalog(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if len(e.categories) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(e.categories))
	}
	total := 0
	for _, c := range e.categories {
		total += len(c.Items)
	}
	if total != 14 {
		t.Fatalf("expected 14 catalog items, got %d", total)
	}
}

func TestEvaluateMarksBackedItemsCompleted(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	res, err := e.Evaluate(context.Background(), fullProduct())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TotalCount != 14 {
		t.Fatalf("expected 14 items, got %d", res.TotalCount)
	}
	// All product-backed auto checks pass; manual items and the
	// storefront items stay pending.
	if res.CompletedCount != 9 {
		t.Fatalf("expected 9 completed, got %d", res.CompletedCount)
	}
	if res.CompletionRate != 9*100/14 {
		t.Fatalf("unexpected completion rate: %d", res.CompletionRate)
	}

	status := map[string]string{}
	for _, item := range res.Items() {
		status[item.ID] = item.Status
	}
	if status["item_001"] != StatusCompleted {
		t.Fatalf("product name check should be completed")
	}
	if status["item_006"] != StatusPending {
		t.Fatalf("manual item must stay pending")
	}
	if status["item_020"] != StatusPending || status["item_021"] != StatusPending {
		t.Fatalf("storefront items must stay pending for a product page")
	}
}

func TestEvaluateZeroValuedFieldsStayPending(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	sparse := &harvest.Result{
		Kind:    harvest.KindProduct,
		Product: &harvest.ProductFields{ProductName: "Mug"},
	}
	res, err := e.Evaluate(context.Background(), sparse)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	status := map[string]string{}
	for _, item := range res.Items() {
		status[item.ID] = item.Status
	}
	if status["item_001"] != StatusCompleted {
		t.Fatalf("name is present and should complete item_001")
	}
	// review_count and image_count are emitted as "0" and must not
	// count as present.
	if status["item_007"] != StatusPending || status["item_008"] != StatusPending {
		t.Fatalf("zero counts must not auto-complete, got %v / %v", status["item_007"], status["item_008"])
	}
	if res.CompletedCount != 1 {
		t.Fatalf("expected only the name check completed, got %d", res.CompletedCount)
	}
}

func TestEvaluateDoesNotMutateCatalog(t *testing.T) {
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if _, err := e.Evaluate(context.Background(), fullProduct()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, c := range e.categories {
		for _, item := range c.Items {
			if item.Status != "" {
				t.Fatalf("catalog item %s mutated to status %q", item.ID, item.Status)
			}
		}
	}
}

func TestFieldPresent(t *testing.T) {
	fields := map[string]string{
		"reviews.review_count": "0",
		"coupon.has_coupon":    "false",
		"product_name":         "Mug",
		"empty":                "",
	}
	cases := []struct {
		name string
		want bool
	}{
		{"product_name", true},
		{"reviews.review_count", false},
		{"coupon.has_coupon", false},
		{"empty", false},
		{"missing", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := FieldPresent(fields, tc.name); got != tc.want {
			t.Fatalf("FieldPresent(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

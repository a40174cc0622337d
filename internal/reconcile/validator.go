// Package reconcile compares harvested page fields against the values
// the analysis re-states, treating the harvested data as ground truth
// and correcting the analysis where they drift apart.
package reconcile

import (
	"math"
	"strconv"
	"strings"
	"time"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/checklist"
)

// DefaultThreshold is the validation score at or above which a report
// counts as valid.
const DefaultThreshold = 90

type valueKind int

const (
	textField valueKind = iota
	numericField
)

// binding maps one harvested field name to its slot in the analysis
// result. The table is fixed and explicit; nothing is inferred.
type binding struct {
	field string
	kind  valueKind
	get   func(*analyze.Result) (string, bool)
	set   func(*analyze.Result, string)
}

// Validator produces consistency reports.
type Validator struct {
	threshold int
}

// NewValidator constructs a Validator. A non-positive threshold falls
// back to DefaultThreshold.
func NewValidator(threshold int) *Validator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

// Validate compares the harvested field map against the analysis
// result, overwrites drifted report values with the harvested ones,
// and flags auto-verifiable checklist items with no backing data.
// The analysis result is mutated in place where corrections apply.
func (v *Validator) Validate(fields map[string]string, result *analyze.Result, checks *checklist.Result) *Report {
	report := &Report{
		Mismatches:      []Mismatch{},
		MissingItems:    []MissingItem{},
		CorrectedFields: []string{},
		GeneratedAt:     time.Now().UTC(),
	}

	matched, total := 0, 0
	for _, b := range bindings() {
		harvestedVal, ok := fields[b.field]
		if !ok {
			continue
		}
		reported, ok := b.get(result)
		if !ok {
			continue
		}
		total++
		if valuesEqual(b.kind, harvestedVal, reported) {
			matched++
			continue
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			Field:        b.field,
			CrawlerValue: harvestedVal,
			ReportValue:  reported,
		})
		b.set(result, harvestedVal)
		report.CorrectedFields = append(report.CorrectedFields, b.field)
	}

	if checks != nil {
		for _, item := range checks.Items() {
			if !item.AutoChecked {
				continue
			}
			if !checklist.FieldPresent(fields, item.BackingField) {
				report.MissingItems = append(report.MissingItems, MissingItem{
					Field:           item.BackingField,
					ChecklistItemID: item.ID,
				})
			}
		}
	}

	if total == 0 {
		report.ValidationScore = 100
	} else {
		report.ValidationScore = int(math.Round(100 * float64(matched) / float64(total)))
	}
	report.IsValid = report.ValidationScore >= v.threshold
	return report
}

func bindings() []binding {
	return []binding{
		{
			field: "product_name",
			kind:  textField,
			get: func(r *analyze.Result) (string, bool) {
				return r.ProductName, r.ProductName != ""
			},
			set: func(r *analyze.Result, val string) { r.ProductName = val },
		},
		{
			field: "price.sale_price",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Price == nil || r.Price.SalePrice == "" {
					return "", false
				}
				return r.Price.SalePrice, true
			},
			set: func(r *analyze.Result, val string) { r.Price.SalePrice = val },
		},
		{
			field: "price.original_price",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Price == nil || r.Price.OriginalPrice == "" {
					return "", false
				}
				return r.Price.OriginalPrice, true
			},
			set: func(r *analyze.Result, val string) { r.Price.OriginalPrice = val },
		},
		{
			field: "reviews.review_count",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Reviews == nil {
					return "", false
				}
				return strconv.Itoa(r.Reviews.ReviewCount), true
			},
			set: func(r *analyze.Result, val string) {
				r.Reviews.ReviewCount = int(parseNumeric(val))
			},
		},
		{
			field: "images.image_count",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Images == nil {
					return "", false
				}
				return strconv.Itoa(r.Images.ImageCount), true
			},
			set: func(r *analyze.Result, val string) {
				r.Images.ImageCount = int(parseNumeric(val))
			},
		},
		{
			field: "shipping_info.shipping_fee",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Shipping == nil || r.Shipping.ShippingFee == "" {
					return "", false
				}
				return r.Shipping.ShippingFee, true
			},
			set: func(r *analyze.Result, val string) { r.Shipping.ShippingFee = val },
		},
		{
			field: "shipping_info.free_shipping_threshold",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Shipping == nil || r.Shipping.FreeShippingThreshold == "" {
					return "", false
				}
				return r.Shipping.FreeShippingThreshold, true
			},
			set: func(r *analyze.Result, val string) { r.Shipping.FreeShippingThreshold = val },
		},
		{
			field: "shop_name",
			kind:  textField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Shop == nil || r.Shop.ShopName == "" {
					return "", false
				}
				return r.Shop.ShopName, true
			},
			set: func(r *analyze.Result, val string) { r.Shop.ShopName = val },
		},
		{
			field: "follower_count",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Shop == nil {
					return "", false
				}
				return strconv.Itoa(r.Shop.FollowerCount), true
			},
			set: func(r *analyze.Result, val string) {
				r.Shop.FollowerCount = int(parseNumeric(val))
			},
		},
		{
			field: "product_count",
			kind:  numericField,
			get: func(r *analyze.Result) (string, bool) {
				if r.Shop == nil {
					return "", false
				}
				return strconv.Itoa(r.Shop.ProductCount), true
			},
			set: func(r *analyze.Result, val string) {
				r.Shop.ProductCount = int(parseNumeric(val))
			},
		},
	}
}

// valuesEqual applies type-aware equality. Numeric fields compare
// exactly after stripping currency and grouping punctuation; these are
// extracted literals, so no tolerance applies. Text compares after
// trimming and collapsing whitespace.
func valuesEqual(kind valueKind, a, b string) bool {
	switch kind {
	case numericField:
		na, okA := tryParseNumeric(a)
		nb, okB := tryParseNumeric(b)
		if okA && okB {
			return na == nb
		}
		return cleanNumeric(a) == cleanNumeric(b)
	default:
		return collapseWhitespace(a) == collapseWhitespace(b)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanNumeric(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '円', '¥', '￥', '$':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func tryParseNumeric(s string) (int64, bool) {
	n, err := strconv.ParseInt(cleanNumeric(s), 10, 64)
	return n, err == nil
}

func parseNumeric(s string) int64 {
	n, _ := tryParseNumeric(s)
	return n
}

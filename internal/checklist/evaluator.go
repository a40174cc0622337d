// Package checklist evaluates a listing against the seller-manual
// checklist. Items marked auto_checked derive their status from
// harvested fields; the rest stay pending for human review.
package checklist

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"shoplens-backend/internal/harvest"
)

//go:embed catalog.yaml
var catalogYAML []byte

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// Item is one pass/fail criterion.
type Item struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description,omitempty" yaml:"description"`
	AutoChecked  bool   `json:"autoChecked" yaml:"auto_checked"`
	BackingField string `json:"backingField,omitempty" yaml:"backing_field"`
	Status       string `json:"status" yaml:"-"`
}

// Category groups related items.
type Category struct {
	Name  string `json:"name" yaml:"name"`
	Items []Item `json:"items" yaml:"items"`
}

// Result is one evaluation of the catalog against a harvested page.
type Result struct {
	Categories     []Category `json:"categories"`
	CompletedCount int        `json:"completedCount"`
	TotalCount     int        `json:"totalCount"`
	CompletionRate int        `json:"completionRate"`
}

// Items flattens all categories into one ordered list.
func (r *Result) Items() []Item {
	var out []Item
	for _, c := range r.Categories {
		out = append(out, c.Items...)
	}
	return out
}

type catalog struct {
	Categories []Category `yaml:"categories"`
}

// Evaluator evaluates the embedded catalog.
type Evaluator struct {
	categories []Category
}

// NewEvaluator parses the embedded catalog.
func NewEvaluator() (*Evaluator, error) {
	var cat catalog
	if err := yaml.Unmarshal(catalogYAML, &cat); err != nil {
		return nil, fmt.Errorf("parse checklist catalog: %w", err)
	}
	if len(cat.Categories) == 0 {
		return nil, fmt.Errorf("checklist catalog is empty")
	}
	return &Evaluator{categories: cat.Categories}, nil
}

// Evaluate marks auto-checked items completed when their backing field
// is present in the harvested data, and leaves manual items pending.
func (e *Evaluator) Evaluate(ctx context.Context, harvested *harvest.Result) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields := harvested.FieldMap()

	result := &Result{Categories: make([]Category, 0, len(e.categories))}
	for _, cat := range e.categories {
		out := Category{Name: cat.Name, Items: make([]Item, 0, len(cat.Items))}
		for _, item := range cat.Items {
			item.Status = StatusPending
			if item.AutoChecked && FieldPresent(fields, item.BackingField) {
				item.Status = StatusCompleted
			}
			if item.Status == StatusCompleted {
				result.CompletedCount++
			}
			result.TotalCount++
			out.Items = append(out.Items, item)
		}
		result.Categories = append(result.Categories, out)
	}
	if result.TotalCount > 0 {
		result.CompletionRate = result.CompletedCount * 100 / result.TotalCount
	}
	return result, nil
}

// FieldPresent reports whether a harvested field carries a usable
// value. Zero counts and false flags are treated as absent.
func FieldPresent(fields map[string]string, name string) bool {
	if name == "" {
		return false
	}
	val, ok := fields[name]
	if !ok {
		return false
	}
	switch val {
	case "", "0", "false":
		return false
	}
	return true
}

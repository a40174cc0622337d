// Package report renders a completed analysis into a downloadable
// document.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/checklist"
	"shoplens-backend/internal/harvest"
	"shoplens-backend/internal/reconcile"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned for unsupported download formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Input bundles everything a rendered report draws from.
type Input struct {
	SourceRef   string            `json:"sourceRef"`
	Kind        string            `json:"kind"`
	Harvested   *harvest.Result   `json:"harvested,omitempty"`
	Analysis    *analyze.Result   `json:"analysis,omitempty"`
	Checklist   *checklist.Result `json:"checklist,omitempty"`
	Validation  *reconcile.Report `json:"validation,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Renderer turns analysis results into documents.
type Renderer struct{}

// NewRenderer constructs a Renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// ContentType returns the MIME type for a format, or "" if unknown.
func ContentType(format string) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return ""
}

// Filename returns the attachment filename for a job and format.
func Filename(jobID, format string) string {
	ext := map[string]string{
		FormatMarkdown: "md",
		FormatJSON:     "json",
		FormatHTML:     "html",
	}[format]
	return fmt.Sprintf("analysis_report_%s.%s", jobID, ext)
}

// Render produces the document bytes for the requested format.
func (r *Renderer) Render(ctx context.Context, format string, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(in, "", "  ")
	case FormatMarkdown:
		return []byte(r.markdown(in)), nil
	case FormatHTML:
		md := r.markdown(in)
		var buf bytes.Buffer
		buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Analysis Report</title></head><body><pre>")
		buf.WriteString(html.EscapeString(md))
		buf.WriteString("</pre></body></html>\n")
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (r *Renderer) markdown(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Listing Analysis Report\n\n")
	fmt.Fprintf(&b, "- Source: %s\n", in.SourceRef)
	fmt.Fprintf(&b, "- Kind: %s\n", in.Kind)
	fmt.Fprintf(&b, "- Generated: %s\n\n", in.GeneratedAt.Format(time.RFC3339))

	if a := in.Analysis; a != nil {
		fmt.Fprintf(&b, "## Overall\n\nScore **%d/100** (grade %s)\n\n", a.OverallScore, a.Grade)
		if a.ProductName != "" {
			fmt.Fprintf(&b, "Product: %s\n\n", a.ProductName)
		}
		if a.Price != nil {
			fmt.Fprintf(&b, "### Price\n\n")
			if a.Price.SalePrice != "" {
				fmt.Fprintf(&b, "- Sale price: %s\n", a.Price.SalePrice)
			}
			if a.Price.OriginalPrice != "" {
				fmt.Fprintf(&b, "- Original price: %s (-%d%%)\n", a.Price.OriginalPrice, a.Price.DiscountRate)
			}
			fmt.Fprintf(&b, "- %s\n\n", a.Price.Assessment)
		}
		if a.Reviews != nil {
			fmt.Fprintf(&b, "### Reviews\n\n- Count: %d\n- %s\n\n", a.Reviews.ReviewCount, a.Reviews.Assessment)
		}
		if a.Images != nil {
			fmt.Fprintf(&b, "### Images\n\n- Count: %d\n- %s\n\n", a.Images.ImageCount, a.Images.Assessment)
		}
		if a.Shop != nil {
			fmt.Fprintf(&b, "### Shop\n\n- Name: %s\n- Followers: %d\n- Products: %d\n\n",
				a.Shop.ShopName, a.Shop.FollowerCount, a.Shop.ProductCount)
		}
		if len(a.Strengths) > 0 {
			fmt.Fprintf(&b, "### Strengths\n\n")
			for _, s := range a.Strengths {
				fmt.Fprintf(&b, "- %s\n", s)
			}
			b.WriteString("\n")
		}
		if len(a.Improvements) > 0 {
			fmt.Fprintf(&b, "### Improvements\n\n")
			for _, s := range a.Improvements {
				fmt.Fprintf(&b, "- %s\n", s)
			}
			b.WriteString("\n")
		}
	}

	if c := in.Checklist; c != nil {
		fmt.Fprintf(&b, "## Checklist (%d%% complete)\n\n", c.CompletionRate)
		for _, cat := range c.Categories {
			fmt.Fprintf(&b, "### %s\n\n", cat.Name)
			for _, item := range cat.Items {
				mark := " "
				if item.Status == checklist.StatusCompleted {
					mark = "x"
				}
				fmt.Fprintf(&b, "- [%s] %s\n", mark, item.Title)
			}
			b.WriteString("\n")
		}
	}

	if v := in.Validation; v != nil {
		fmt.Fprintf(&b, "## Data Validation\n\nScore %d/100, valid: %t\n\n", v.ValidationScore, v.IsValid)
		if len(v.Mismatches) > 0 {
			fmt.Fprintf(&b, "| Field | Crawled | Reported |\n|---|---|---|\n")
			for _, m := range v.Mismatches {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", m.Field, m.CrawlerValue, m.ReportValue)
			}
			b.WriteString("\n")
		}
		if len(v.MissingItems) > 0 {
			fmt.Fprintf(&b, "Missing auto-check data:\n\n")
			for _, m := range v.MissingItems {
				fmt.Fprintf(&b, "- %s (%s)\n", m.Field, m.ChecklistItemID)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

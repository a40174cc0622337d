// Package analyze derives a quality score and per-section assessment
// from a harvested field set. The score is a deterministic
// completeness measure over the listing, not a sales prediction.
package analyze

import (
	"context"
	"errors"
	"fmt"

	"shoplens-backend/internal/harvest"
)

// PriceAnalysis re-states the harvested price fields alongside the
// assessment derived from them.
type PriceAnalysis struct {
	SalePrice     string `json:"salePrice,omitempty"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	DiscountRate  int    `json:"discountRate,omitempty"`
	Assessment    string `json:"assessment"`
}

// ReviewAnalysis covers social proof on the listing.
type ReviewAnalysis struct {
	ReviewCount int    `json:"reviewCount"`
	Assessment  string `json:"assessment"`
}

// ImageAnalysis covers listing imagery.
type ImageAnalysis struct {
	ImageCount int    `json:"imageCount"`
	Assessment string `json:"assessment"`
}

// ShippingAnalysis covers shipping configuration.
type ShippingAnalysis struct {
	ShippingFee           string `json:"shippingFee,omitempty"`
	FreeShippingThreshold string `json:"freeShippingThreshold,omitempty"`
	Assessment            string `json:"assessment"`
}

// ShopSummary aggregates a storefront analysis.
type ShopSummary struct {
	ShopName            string `json:"shopName"`
	FollowerCount       int    `json:"followerCount"`
	ProductCount        int    `json:"productCount"`
	AverageProductScore int    `json:"averageProductScore"`
}

// Result is the analysis output for one job. Product sections are set
// for product jobs; Shop for shop jobs.
type Result struct {
	OverallScore int    `json:"overallScore"`
	Grade        string `json:"grade"`

	ProductName string            `json:"productName,omitempty"`
	Price       *PriceAnalysis    `json:"priceAnalysis,omitempty"`
	Reviews     *ReviewAnalysis   `json:"reviewAnalysis,omitempty"`
	Images      *ImageAnalysis    `json:"imageAnalysis,omitempty"`
	Shipping    *ShippingAnalysis `json:"shippingAnalysis,omitempty"`
	Shop        *ShopSummary      `json:"shopAnalysis,omitempty"`

	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// Analyzer computes analysis results from harvested fields.
type Analyzer struct{}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze scores the harvested result.
func (a *Analyzer) Analyze(ctx context.Context, harvested *harvest.Result) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if harvested == nil {
		return nil, errors.New("nothing harvested")
	}
	switch {
	case harvested.Product != nil:
		return analyzeProduct(harvested.Product), nil
	case harvested.Shop != nil:
		return analyzeShop(harvested.Shop), nil
	default:
		return nil, fmt.Errorf("harvest result for %q carries no fields", harvested.SourceRef)
	}
}

func analyzeProduct(p *harvest.ProductFields) *Result {
	r := &Result{ProductName: p.ProductName}
	score := 0

	nameScore := 0
	switch n := len([]rune(p.ProductName)); {
	case n >= 20:
		nameScore = 25
		r.Strengths = append(r.Strengths, "descriptive product name")
	case n > 0:
		nameScore = 15
		r.Improvements = append(r.Improvements, "lengthen the product name with searchable keywords")
	default:
		r.Improvements = append(r.Improvements, "product name missing")
	}
	score += nameScore

	price := &PriceAnalysis{
		SalePrice:     p.Price.SalePrice,
		OriginalPrice: p.Price.OriginalPrice,
		DiscountRate:  p.Price.DiscountRate,
	}
	switch {
	case p.Price.SalePrice == "":
		price.Assessment = "no price found"
		r.Improvements = append(r.Improvements, "sale price not detected on the page")
	case p.Price.DiscountRate > 0:
		price.Assessment = fmt.Sprintf("discounted %d%% from list price", p.Price.DiscountRate)
		r.Strengths = append(r.Strengths, "visible discount")
		score += 25
	default:
		price.Assessment = "price set, no visible discount"
		score += 18
	}
	r.Price = price

	reviews := &ReviewAnalysis{ReviewCount: p.ReviewCount}
	switch {
	case p.ReviewCount >= 50:
		reviews.Assessment = "strong social proof"
		score += 20
	case p.ReviewCount > 0:
		reviews.Assessment = "some reviews"
		score += 10
	default:
		reviews.Assessment = "no reviews yet"
		r.Improvements = append(r.Improvements, "collect reviews to build trust")
	}
	r.Reviews = reviews

	images := &ImageAnalysis{ImageCount: p.ImageCount}
	switch {
	case p.ImageCount >= 5:
		images.Assessment = "rich imagery"
		score += 20
	case p.ImageCount > 0:
		images.Assessment = "few images"
		score += 10
		r.Improvements = append(r.Improvements, "add more detail images")
	default:
		images.Assessment = "no images detected"
	}
	r.Images = images

	shipping := &ShippingAnalysis{
		ShippingFee:           p.Shipping.ShippingFee,
		FreeShippingThreshold: p.Shipping.FreeShippingThreshold,
	}
	if p.Shipping.ShippingFee != "" || p.Shipping.FreeShippingThreshold != "" {
		shipping.Assessment = "shipping terms stated"
		score += 10
	} else {
		shipping.Assessment = "shipping terms not found"
		r.Improvements = append(r.Improvements, "state shipping fee or free-shipping threshold")
	}
	r.Shipping = shipping

	r.OverallScore = score
	r.Grade = gradeFor(score)
	return r
}

func analyzeShop(s *harvest.ShopFields) *Result {
	r := &Result{}
	summary := &ShopSummary{
		ShopName:      s.ShopName,
		FollowerCount: s.FollowerCount,
		ProductCount:  s.ProductCount,
	}

	score := 0
	if s.ShopName != "" {
		score += 20
	} else {
		r.Improvements = append(r.Improvements, "shop name not detected")
	}
	switch {
	case s.FollowerCount >= 1000:
		score += 30
		r.Strengths = append(r.Strengths, "established follower base")
	case s.FollowerCount > 0:
		score += 15
	}
	if s.ProductCount >= 10 {
		score += 20
	} else if s.ProductCount > 0 {
		score += 10
	}

	if len(s.Products) > 0 {
		total := 0
		for i := range s.Products {
			total += analyzeProduct(&s.Products[i]).OverallScore
		}
		summary.AverageProductScore = total / len(s.Products)
		score += summary.AverageProductScore * 30 / 100
	}

	r.Shop = summary
	r.OverallScore = score
	r.Grade = gradeFor(score)
	return r
}

func gradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

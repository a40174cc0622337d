package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shoplens-backend/internal/shared/telemetry"
)

const (
	KindProduct = "product"
	KindShop    = "shop"

	defaultUserAgent = "shoplens-harvester/1.0"
	maxBodyBytes     = 4 << 20
)

// Options configures the harvester.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	RatePerHost rate.Limit
	Burst       int
}

// HintSource supplies field names that most need crawling attention,
// ranked by user feedback. Implemented by the feedback aggregator.
type HintSource interface {
	PriorityFields(ctx context.Context, topK int) ([]string, error)
}

// Harvester fetches a page and extracts its structured fields. Fetches
// are rate limited per host so many concurrent jobs cannot hammer one
// marketplace.
type Harvester struct {
	client *http.Client
	opts   Options
	hints  HintSource

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a Harvester. hints may be nil.
func New(opts Options, hints HintSource) *Harvester {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	return &Harvester{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		hints:    hints,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Harvest fetches sourceRef and extracts the field set for kind.
func (h *Harvester) Harvest(ctx context.Context, sourceRef, kind string) (*Result, error) {
	parsed, err := url.Parse(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if err := h.limiterFor(parsed.Host).Wait(ctx); err != nil {
		return nil, err
	}

	body, err := h.fetch(ctx, sourceRef)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SourceRef: sourceRef,
		Kind:      kind,
		FetchedAt: time.Now().UTC(),
	}
	switch kind {
	case KindShop:
		result.Shop = extractShop(body)
	default:
		result.Kind = KindProduct
		result.Product = h.extractProduct(ctx, body)
	}
	return result, nil
}

func (h *Harvester) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if lim, ok := h.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(h.opts.RatePerHost, h.opts.Burst)
	h.limiters[host] = lim
	return lim
}

func (h *Harvester) fetch(ctx context.Context, sourceRef string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}
	return string(data), nil
}

var (
	ogTitleRe    = regexp.MustCompile(`<meta[^>]+property="og:title"[^>]+content="([^"]+)"`)
	titleTagRe   = regexp.MustCompile(`<title[^>]*>([^<]+)</title>`)
	priceRe      = regexp.MustCompile(`([0-9][0-9,]*)\s*円`)
	reviewRe     = regexp.MustCompile(`([0-9][0-9,]*)\s*件?\s*(?:のレビュー|レビュー|reviews?)`)
	imgTagRe     = regexp.MustCompile(`<img[\s>]`)
	qpointRe     = regexp.MustCompile(`Q[pP]oint|Qポイント`)
	qpointRateRe = regexp.MustCompile(`(?:Q[pP]oint|Qポイント)[^0-9]{0,12}([0-9]{1,2})\s*%`)
	couponRe     = regexp.MustCompile(`クーポン|[cC]oupon`)
	shippingRe   = regexp.MustCompile(`(?:送料|배송비|[sS]hipping)[：:\s]*([0-9][0-9,]*)\s*円?`)
	freeShipRe   = regexp.MustCompile(`([0-9][0-9,]*)\s*円\s*以上[^。]{0,20}送料無料`)
	followerRe   = regexp.MustCompile(`(?:フォロワー|[fF]ollowers?)[：:\s]*([0-9][0-9,]*)`)
	productCntRe = regexp.MustCompile(`([0-9][0-9,]*)\s*(?:件の商品|[iI]tems)`)
	shopNameRe   = regexp.MustCompile(`<meta[^>]+property="og:site_name"[^>]+content="([^"]+)"`)

	// Looser fallback patterns for the priority retry pass.
	retryReviewRe = regexp.MustCompile(`review[^0-9]{0,10}([0-9]+)`)
	retryPriceRe  = regexp.MustCompile(`[¥￥$]\s*([0-9][0-9,]*)`)
)

func (h *Harvester) extractProduct(ctx context.Context, body string) *ProductFields {
	p := &ProductFields{}
	p.ProductName = firstMatch(ogTitleRe, body)

	prices := priceRe.FindAllStringSubmatch(body, 4)
	if len(prices) > 0 {
		p.Price.SalePrice = prices[0][1]
	}
	if len(prices) > 1 && prices[1][1] != prices[0][1] {
		sale := parseNumber(prices[0][1])
		other := parseNumber(prices[1][1])
		if other > sale {
			p.Price.OriginalPrice = prices[1][1]
			if other > 0 {
				p.Price.DiscountRate = int((other - sale) * 100 / other)
			}
		}
	}
	if m := reviewRe.FindStringSubmatch(body); m != nil {
		p.ReviewCount = int(parseNumber(m[1]))
	}
	p.ImageCount = len(imgTagRe.FindAllString(body, -1))
	if m := qpointRateRe.FindStringSubmatch(body); m != nil {
		p.QpointRate = int(parseNumber(m[1]))
	} else if qpointRe.MatchString(body) {
		p.QpointRate = 1
	}
	p.HasCoupon = couponRe.MatchString(body)
	if m := shippingRe.FindStringSubmatch(body); m != nil {
		p.Shipping.ShippingFee = m[1]
	}
	if m := freeShipRe.FindStringSubmatch(body); m != nil {
		p.Shipping.FreeShippingThreshold = m[1]
	}
	if p.ProductName != "" {
		p.Keywords = extractKeywords(p.ProductName)
	}

	h.retryPriorityFields(ctx, body, p)
	return p
}

// retryPriorityFields gives user-reported problem fields a second
// extraction pass with fallback patterns. The priority list is the
// feedback loop's only effect on harvesting.
func (h *Harvester) retryPriorityFields(ctx context.Context, body string, p *ProductFields) {
	if h.hints == nil {
		return
	}
	fields, err := h.hints.PriorityFields(ctx, 10)
	if err != nil || len(fields) == 0 {
		return
	}
	for _, field := range fields {
		switch field {
		case "product_name":
			if p.ProductName == "" {
				if title := firstMatch(titleTagRe, body); title != "" {
					p.ProductName = strings.TrimSpace(title)
					p.Keywords = extractKeywords(p.ProductName)
				}
			}
		case "reviews.review_count":
			if p.ReviewCount == 0 {
				if m := retryReviewRe.FindStringSubmatch(strings.ToLower(body)); m != nil {
					p.ReviewCount = int(parseNumber(m[1]))
				}
			}
		case "price.sale_price":
			if p.Price.SalePrice == "" {
				if m := retryPriceRe.FindStringSubmatch(body); m != nil {
					p.Price.SalePrice = m[1]
				}
			}
		}
	}
	telemetry.Info("harvest.priority_retry", map[string]any{
		"fields": fields,
	})
}

func extractShop(body string) *ShopFields {
	s := &ShopFields{}
	s.ShopName = firstMatch(shopNameRe, body)
	if s.ShopName == "" {
		s.ShopName = strings.TrimSpace(firstMatch(titleTagRe, body))
	}
	if m := followerRe.FindStringSubmatch(body); m != nil {
		s.FollowerCount = int(parseNumber(m[1]))
	}
	if m := productCntRe.FindStringSubmatch(body); m != nil {
		s.ProductCount = int(parseNumber(m[1]))
	}

	// Storefront listings carry a name and a price per tile; anything
	// deeper needs the product page itself.
	for _, tile := range splitTiles(body) {
		name := firstMatch(ogTitleRe, tile)
		if name == "" {
			continue
		}
		p := ProductFields{ProductName: name}
		if m := priceRe.FindStringSubmatch(tile); m != nil {
			p.Price.SalePrice = m[1]
		}
		s.Products = append(s.Products, p)
		if len(s.Products) >= 50 {
			break
		}
	}
	if s.ProductCount == 0 {
		s.ProductCount = len(s.Products)
	}
	return s
}

func splitTiles(body string) []string {
	parts := strings.Split(body, `<li class="item"`)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

func firstMatch(re *regexp.Regexp, body string) string {
	if m := re.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func parseNumber(raw string) int64 {
	cleaned := strings.ReplaceAll(raw, ",", "")
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func extractKeywords(name string) []string {
	fields := strings.Fields(name)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "[]()【】")
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
		if len(out) >= 8 {
			break
		}
	}
	return out
}

package harvest

import (
	"strconv"
	"time"
)

// PriceInfo holds the extracted price literals. Prices are kept as the
// raw literals found on the page (possibly with currency punctuation);
// downstream comparison normalizes before matching.
type PriceInfo struct {
	SalePrice     string `json:"salePrice,omitempty"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	DiscountRate  int    `json:"discountRate,omitempty"`
}

// ShippingInfo holds shipping-related literals.
type ShippingInfo struct {
	ShippingFee           string `json:"shippingFee,omitempty"`
	FreeShippingThreshold string `json:"freeShippingThreshold,omitempty"`
}

// ProductFields is the structured field set harvested from a single
// product page.
type ProductFields struct {
	ProductName string       `json:"productName"`
	Price       PriceInfo    `json:"price"`
	Shipping    ShippingInfo `json:"shippingInfo"`
	ReviewCount int          `json:"reviewCount"`
	ImageCount  int          `json:"imageCount"`
	QpointRate  int          `json:"qpointRate,omitempty"`
	HasCoupon   bool         `json:"hasCoupon"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// ShopFields is the structured field set harvested from a shop page.
// Products holds the sub-records discovered on the storefront.
type ShopFields struct {
	ShopName      string          `json:"shopName"`
	FollowerCount int             `json:"followerCount"`
	ProductCount  int             `json:"productCount"`
	Products      []ProductFields `json:"products,omitempty"`
}

// Result is the output of one harvest. Exactly one of Product or Shop
// is set, selected by Kind.
type Result struct {
	SourceRef string         `json:"sourceRef"`
	Kind      string         `json:"kind"`
	Product   *ProductFields `json:"product,omitempty"`
	Shop      *ShopFields    `json:"shop,omitempty"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// FieldMap flattens the harvested values into dotted field names. The
// names are the canonical vocabulary shared with the reconciliation
// validator and the checklist evaluator; only fields that were
// actually extracted appear.
func (r *Result) FieldMap() map[string]string {
	m := make(map[string]string)
	if r == nil {
		return m
	}
	if r.Product != nil {
		putProductFields(m, "", r.Product)
	}
	if r.Shop != nil {
		put(m, "shop_name", r.Shop.ShopName)
		if r.Shop.FollowerCount > 0 {
			m["follower_count"] = strconv.Itoa(r.Shop.FollowerCount)
		}
		if r.Shop.ProductCount > 0 {
			m["product_count"] = strconv.Itoa(r.Shop.ProductCount)
		}
	}
	return m
}

func putProductFields(m map[string]string, prefix string, p *ProductFields) {
	put(m, prefix+"product_name", p.ProductName)
	put(m, prefix+"price.sale_price", p.Price.SalePrice)
	put(m, prefix+"price.original_price", p.Price.OriginalPrice)
	if p.Price.DiscountRate > 0 {
		m[prefix+"price.discount_rate"] = strconv.Itoa(p.Price.DiscountRate)
	}
	put(m, prefix+"shipping_info.shipping_fee", p.Shipping.ShippingFee)
	put(m, prefix+"shipping_info.free_shipping_threshold", p.Shipping.FreeShippingThreshold)
	m[prefix+"reviews.review_count"] = strconv.Itoa(p.ReviewCount)
	m[prefix+"images.image_count"] = strconv.Itoa(p.ImageCount)
	if p.QpointRate > 0 {
		m[prefix+"qpoint.rate"] = strconv.Itoa(p.QpointRate)
	}
	if p.HasCoupon {
		m[prefix+"coupon.has_coupon"] = "true"
	}
}

func put(m map[string]string, key, val string) {
	if val != "" {
		m[key] = val
	}
}

package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

// platformProduct is the product object an e-commerce platform sends in
// its product create/update webhooks.
type platformProduct struct {
	ID          json.RawMessage   `json:"id"`
	Title       string            `json:"title"`
	BodyHTML    string            `json:"body_html"`
	Vendor      string            `json:"vendor"`
	Handle      string            `json:"handle"`
	ProductType string            `json:"product_type"`
	Status      string            `json:"status"`
	Tags        string            `json:"tags"`
	Variants    []platformVariant `json:"variants"`
	Images      []platformImage   `json:"images"`
}

type platformVariant struct {
	Price             json.RawMessage `json:"price"`
	InventoryQuantity *int            `json:"inventory_quantity"`
}

type platformImage struct {
	Src string `json:"src"`
}

// looksLikePlatformProduct requires a title and a variants list.
func looksLikePlatformProduct(obj map[string]json.RawMessage) bool {
	if _, ok := obj["title"]; !ok {
		return false
	}
	raw, ok := obj["variants"]
	return ok && isJSONArray(raw)
}

func (n Normalizer) normalizePlatformProduct(body []byte, policy Policy) (Candidate, error) {
	var pp platformProduct
	if err := json.Unmarshal(body, &pp); err != nil {
		return Candidate{}, err
	}

	p := domain.CanonicalProduct{
		ExternalID:    rawID(pp.ID),
		Title:         strings.TrimSpace(pp.Title),
		Description:   pp.BodyHTML,
		Category:      strings.TrimSpace(pp.ProductType),
		Currency:      n.DefaultCurrency,
		Tags:          splitTags(pp.Tags),
		SourceChannel: policy.Channel,
		Metadata: map[string]any{
			"source_vendor": pp.Vendor,
			"handle":        pp.Handle,
		},
	}

	price := 0.0
	inventory := 0
	if len(pp.Variants) > 0 {
		price = parseVariantPrice(pp.Variants[0].Price)
		// Oversold items report negative stock; nothing is available.
		if q := pp.Variants[0].InventoryQuantity; q != nil && *q > 0 {
			inventory = *q
		}
	}
	p.Price = &price
	p.InventoryCount = &inventory

	for _, img := range pp.Images {
		if src := strings.TrimSpace(img.Src); src != "" {
			p.Images = append(p.Images, src)
		}
	}

	if s, ok := domain.ParseListingStatus(pp.Status); ok {
		p.Status = s
	} else {
		p.Status = policy.DefaultStatus
	}
	if p.Category == "" {
		p.Category = n.DefaultCategory
	}

	ref := p.ExternalID
	if ref == "" {
		ref = "product"
	}
	return Candidate{Ref: ref, Product: p}, nil
}

// parseVariantPrice reads a price sent as a decimal string or a number.
// Anything unparseable or negative is 0.
func parseVariantPrice(raw json.RawMessage) float64 {
	if len(raw) == 0 || isJSONNull(raw) {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(bytes.TrimSpace(raw))
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// rawID stringifies a numeric or string id. Numbers keep their exact
// digits; large platform ids do not fit a float64.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return compactStrings(strings.Split(raw, ","))
}

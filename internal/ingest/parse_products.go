package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

func (n Normalizer) normalizeBatch(items []json.RawMessage, policy Policy) []Candidate {
	out := make([]Candidate, 0, len(items))
	for i, raw := range items {
		out = append(out, n.normalizeItem(i, raw, policy))
	}
	return out
}

func (n Normalizer) normalizeItem(index int, raw json.RawMessage, policy Policy) Candidate {
	c := Candidate{Ref: fmt.Sprintf("item[%d]", index)}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		c.Issues = append(c.Issues, ValidationIssue{Path: c.Ref, Code: "invalid_type", Message: ErrProductItemNotValid.Error()})
		return c
	}

	var res ValidationResult
	p := domain.CanonicalProduct{SourceChannel: policy.Channel}

	if id, ok := decodeID(obj, "external_id", &res); ok {
		p.ExternalID = id
	}
	if p.ExternalID != "" {
		c.Ref = p.ExternalID
	}

	unmarshalIfPresent(obj, "title", &p.Title, &res)
	unmarshalIfPresent(obj, "description", &p.Description, &res)
	unmarshalIfPresent(obj, "currency", &p.Currency, &res)
	unmarshalIfPresent(obj, "category", &p.Category, &res)
	unmarshalIfPresent(obj, "location", &p.Location, &res)
	unmarshalIfPresent(obj, "tags", &p.Tags, &res)
	unmarshalIfPresent(obj, "images", &p.Images, &res)
	unmarshalIfPresent(obj, "metadata", &p.Metadata, &res)

	var price float64
	if unmarshalIfPresent(obj, "price", &price, &res) {
		p.Price = &price
	}
	var inv int
	if unmarshalIfPresent(obj, "inventory_count", &inv, &res) {
		p.InventoryCount = &inv
	}
	var status string
	if unmarshalIfPresent(obj, "status", &status, &res) {
		p.Status = domain.ListingStatus(strings.ToLower(strings.TrimSpace(status)))
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Tags = compactStrings(p.Tags)
	p.Images = compactStrings(p.Images)

	n.applyDefaults(&p, policy)

	c.Product = p
	c.Issues = res.Issues
	return c
}

// FromProduct wraps a product built outside the parser, such as one
// extracted from a conversational message, applying the defaults of its
// source channel.
func (n Normalizer) FromProduct(ref string, p domain.CanonicalProduct) Candidate {
	p.Title = strings.TrimSpace(p.Title)
	p.Tags = compactStrings(p.Tags)
	p.Images = compactStrings(p.Images)
	n.applyDefaults(&p, PolicyFor(p.SourceChannel))
	return Candidate{Ref: ref, Product: p}
}

// applyDefaults fills absent fields from the channel policy.
func (n Normalizer) applyDefaults(p *domain.CanonicalProduct, policy Policy) {
	if p.Price == nil {
		p.Price = domain.Float64(0)
	}
	if p.InventoryCount == nil {
		p.InventoryCount = domain.Int(policy.DefaultInventory)
	}
	if p.Status == "" {
		p.Status = policy.DefaultStatus
	}
	if strings.TrimSpace(p.Category) == "" {
		p.Category = n.DefaultCategory
	}
	if p.Currency == "" {
		p.Currency = n.DefaultCurrency
	}
}

// unmarshalIfPresent decodes obj[key] into dst. Absent and null values
// leave dst untouched and report false. A type mismatch is recorded as an
// issue.
func unmarshalIfPresent[T any](obj map[string]json.RawMessage, key string, dst *T, res *ValidationResult) bool {
	raw, ok := obj[key]
	if !ok || isJSONNull(raw) {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		addIssue(res, key, "invalid_type", fmt.Sprintf("has the wrong type or value (%s)", jsonKind(raw)))
		return false
	}
	return true
}

// decodeID accepts a string or a number. Vendors commonly send numeric ids.
func decodeID(obj map[string]json.RawMessage, key string, res *ValidationResult) (string, bool) {
	raw, ok := obj[key]
	if !ok || isJSONNull(raw) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String(), true
	}

	addIssue(res, key, "invalid_type", fmt.Sprintf("has the wrong type or value (%s)", jsonKind(raw)))
	return "", false
}

func jsonKind(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "invalid"
	}
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "null"
	}
}

func compactStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

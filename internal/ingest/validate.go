package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

// Field length limits, in characters, matching the listings table.
const (
	MaxExternalIDLen = 255
	MaxTitleLen      = 512
	MaxCategoryLen   = 128
	MaxLocationLen   = 255
)

type ValidationIssue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	return i.Path + " " + i.Message
}

type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

func (r ValidationResult) IsValid() bool {
	return len(r.Issues) == 0
}

// Reason joins the issues into the single string reported per item.
func (r ValidationResult) Reason() string {
	parts := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		parts = append(parts, i.String())
	}
	return strings.Join(parts, "; ")
}

// ValidateProduct checks the fields a listing cannot be written without.
func ValidateProduct(p domain.CanonicalProduct) ValidationResult {
	var res ValidationResult

	requireNonEmpty(&res, "external_id", p.ExternalID)
	requireNonEmpty(&res, "title", p.Title)
	maxLength(&res, "external_id", p.ExternalID, MaxExternalIDLen)
	maxLength(&res, "title", p.Title, MaxTitleLen)
	maxLength(&res, "category", p.Category, MaxCategoryLen)
	maxLength(&res, "location", p.Location, MaxLocationLen)

	if p.Price != nil && *p.Price < 0 {
		addIssue(&res, "price", "negative", "must not be negative")
	}
	if p.InventoryCount != nil && *p.InventoryCount < 0 {
		addIssue(&res, "inventory_count", "negative", "must not be negative")
	}
	if p.Currency != "" && !domain.IsCurrencyCode(p.Currency) {
		addIssue(&res, "currency", "invalid_currency", "must be a 3-letter ISO code (e.g. \"USD\")")
	}
	if p.Status != "" {
		if _, ok := domain.ParseListingStatus(string(p.Status)); !ok {
			addIssue(&res, "status", "invalid_enum", "must be one of: active, draft, inactive, archived, pending_review")
		}
	}

	return res
}

func requireNonEmpty(res *ValidationResult, path string, v string) {
	if strings.TrimSpace(v) == "" {
		addIssue(res, path, "required", "is required")
	}
}

func maxLength(res *ValidationResult, path string, v string, max int) {
	if utf8.RuneCountInString(v) > max {
		addIssue(res, path, "too_long", fmt.Sprintf("must be at most %d characters", max))
	}
}

func addIssue(res *ValidationResult, path string, code string, msg string) {
	res.Issues = append(res.Issues, ValidationIssue{
		Path:    path,
		Code:    code,
		Message: msg,
	})
}

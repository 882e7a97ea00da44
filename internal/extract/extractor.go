// Package extract turns free-form conversational submissions into product
// fields with the help of an external model.
package extract

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/metrics"
)

const (
	MaxFallbackTitle = 120
	maxTitle         = 200
	maxCategory      = 128
	maxLocation      = 255
	untitledListing  = "Untitled listing"
)

var ErrDisabled = errors.New("extraction client is not configured")

type Input struct {
	Text     string
	HasMedia bool
	// ImageURL is set when the media reference could be resolved.
	ImageURL string
}

// Fields is what the model returns. Only Title is required.
type Fields struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Currency    *string  `json:"currency"`
	Category    *string  `json:"category"`
	Status      *string  `json:"status"`
	Tags        []string `json:"tags"`
	Location    *string  `json:"location"`
}

type Client interface {
	Extract(ctx context.Context, in Input) (Fields, error)
}

// Fragment is a best-effort partial product. Fallback is true when the
// model call failed and only the title was derived from the text.
type Fragment struct {
	Title       string
	Description string
	Price       *float64
	Currency    string
	Category    string
	Status      domain.ListingStatus
	Tags        []string
	Location    string
	Fallback    bool
}

type Adapter struct {
	Client Client
	Logger *zap.Logger
}

// Extract never fails. Any client error yields a fragment whose title is
// the truncated input text.
func (a Adapter) Extract(ctx context.Context, in Input) Fragment {
	if a.Client == nil {
		return a.fallback(in, "disabled", ErrDisabled)
	}

	f, err := a.Client.Extract(ctx, in)
	if err != nil {
		reason := "upstream"
		if errors.Is(err, ErrDisabled) {
			reason = "disabled"
		}
		return a.fallback(in, reason, err)
	}
	if strings.TrimSpace(f.Title) == "" {
		return a.fallback(in, "empty_title", errors.New("model returned no title"))
	}

	frag := Fragment{
		Title:       truncateRunes(strings.TrimSpace(f.Title), maxTitle),
		Description: deref(f.Description),
		Currency:    strings.ToUpper(deref(f.Currency)),
		Category:    truncateRunes(deref(f.Category), maxCategory),
		Tags:        f.Tags,
		Location:    truncateRunes(deref(f.Location), maxLocation),
	}
	if f.Price != nil && *f.Price >= 0 {
		frag.Price = f.Price
	}
	// Out-of-enum statuses are dropped so the channel default applies.
	if s, ok := domain.ParseListingStatus(deref(f.Status)); ok {
		frag.Status = s
	}
	if !domain.IsCurrencyCode(frag.Currency) {
		frag.Currency = ""
	}
	return frag
}

func (a Adapter) fallback(in Input, reason string, err error) Fragment {
	metrics.ExtractionFallbacks.WithLabelValues(reason).Inc()
	if a.Logger != nil {
		a.Logger.Warn("extraction fell back to raw text",
			zap.String("reason", reason),
			zap.Bool("has_media", in.HasMedia),
			zap.Error(err),
		)
	}
	return Fragment{Title: FallbackTitle(in.Text), Fallback: true}
}

// FallbackTitle is the input text trimmed and cut to MaxFallbackTitle runes.
func FallbackTitle(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return untitledListing
	}
	return truncateRunes(t, MaxFallbackTitle)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

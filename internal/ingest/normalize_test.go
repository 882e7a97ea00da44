package ingest

import (
	"errors"
	"testing"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

func testNormalizer() Normalizer {
	return Normalizer{DefaultCategory: "general", DefaultCurrency: "USD"}
}

func TestNormalize_NativeBatchAppliesPushDefaults(t *testing.T) {
	body := `{"products":[{"external_id":"p1","title":"Chair","price":49.99}]}`

	shape, cands, err := testNormalizer().Normalize([]byte(body), domain.ChannelPush)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if shape != ShapeNativeBatch {
		t.Fatalf("expected native_batch, got %s", shape)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}

	p := cands[0].Product
	if cands[0].Ref != "p1" || p.ExternalID != "p1" || p.Title != "Chair" {
		t.Fatalf("unexpected product: %+v", p)
	}
	if p.Price == nil || *p.Price != 49.99 {
		t.Fatalf("expected price 49.99, got %v", p.Price)
	}
	if p.InventoryCount == nil || *p.InventoryCount != 1 {
		t.Fatalf("expected push inventory default 1, got %v", p.InventoryCount)
	}
	if p.Status != domain.StatusActive || p.Category != "general" || p.Currency != "USD" || p.Description != "" {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.SourceChannel != domain.ChannelPush {
		t.Fatalf("expected push source channel, got %s", p.SourceChannel)
	}
}

func TestNormalize_InventoryDefaultDiffersByChannel(t *testing.T) {
	body := `{"products":[{"external_id":"p1","title":"Chair"}]}`

	_, push, _ := testNormalizer().Normalize([]byte(body), domain.ChannelPush)
	_, hook, _ := testNormalizer().Normalize([]byte(body), domain.ChannelPlatformWebhook)

	if *push[0].Product.InventoryCount != 1 {
		t.Fatalf("expected push default 1, got %d", *push[0].Product.InventoryCount)
	}
	if *hook[0].Product.InventoryCount != 0 {
		t.Fatalf("expected webhook default 0, got %d", *hook[0].Product.InventoryCount)
	}
}

func TestNormalize_ProductsFieldRules(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		channel domain.SourceChannel
		wantErr error
		wantN   int
	}{
		{"empty array is a no-op", `{"products":[]}`, domain.ChannelPush, nil, 0},
		{"non-array products on push", `{"products":{"a":1}}`, domain.ChannelPush, ErrProductsNotArray, 0},
		{"missing products on push", `{"items":[]}`, domain.ChannelPush, ErrProductsMissing, 0},
		{"empty body on push", ``, domain.ChannelPush, ErrProductsMissing, 0},
		{"top-level array on push", `[{"external_id":"a","title":"A"}]`, domain.ChannelPush, ErrProductsMissing, 0},
		{"top-level array on webhook", `[{"external_id":"a","title":"A"}]`, domain.ChannelPlatformWebhook, nil, 1},
		{"unknown shape on webhook", `{"topic":"ping"}`, domain.ChannelPlatformWebhook, nil, 0},
		{"non-array products on webhook", `{"products":"nope"}`, domain.ChannelPlatformWebhook, nil, 0},
		{"malformed json", `{"products":[`, domain.ChannelPlatformWebhook, ErrMalformedBody, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cands, err := testNormalizer().Normalize([]byte(tt.body), tt.channel)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected err %v, got %v", tt.wantErr, err)
			}
			if len(cands) != tt.wantN {
				t.Fatalf("expected %d candidates, got %d", tt.wantN, len(cands))
			}
		})
	}
}

func TestNormalize_ItemIssuesAreItemScoped(t *testing.T) {
	body := `{"products":[
		{"external_id":"p1","price":"cheap"},
		"not-an-object",
		{"external_id":42,"title":"Numeric id"}
	]}`

	_, cands, err := testNormalizer().Normalize([]byte(body), domain.ChannelPush)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(cands))
	}

	if len(cands[0].Issues) != 1 || cands[0].Issues[0].Path != "price" {
		t.Fatalf("expected price type issue, got %#v", cands[0].Issues)
	}
	if cands[1].Ref != "item[1]" || len(cands[1].Issues) != 1 {
		t.Fatalf("expected non-object issue for item[1], got %#v", cands[1])
	}
	if cands[2].Ref != "42" || len(cands[2].Issues) != 0 {
		t.Fatalf("expected numeric id to be accepted, got %#v", cands[2])
	}
}

func TestNormalize_PlatformProduct(t *testing.T) {
	body := `{
		"id": 7891234567890,
		"title": "Linen Shirt",
		"body_html": "<p>Soft</p>",
		"vendor": "Acme Apparel",
		"handle": "linen-shirt",
		"product_type": "Shirts",
		"status": "draft",
		"tags": "linen, summer ,",
		"variants": [{"price": "29.50", "inventory_quantity": 12}, {"price": "31.00"}],
		"images": [{"src": "https://cdn.example.com/a.jpg"}, {"src": ""}]
	}`

	shape, cands, err := testNormalizer().Normalize([]byte(body), domain.ChannelPlatformWebhook)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if shape != ShapePlatformProduct || len(cands) != 1 {
		t.Fatalf("expected one platform product, got %s with %d", shape, len(cands))
	}

	p := cands[0].Product
	if p.ExternalID != "7891234567890" {
		t.Fatalf("expected stringified id, got %q", p.ExternalID)
	}
	if *p.Price != 29.50 || *p.InventoryCount != 12 {
		t.Fatalf("expected first variant price/qty, got %v/%v", *p.Price, *p.InventoryCount)
	}
	if p.Status != domain.StatusDraft || p.Category != "Shirts" {
		t.Fatalf("unexpected status/category: %s/%s", p.Status, p.Category)
	}
	if len(p.Images) != 1 || len(p.Tags) != 2 || p.Tags[1] != "summer" {
		t.Fatalf("unexpected images/tags: %#v %#v", p.Images, p.Tags)
	}
	if p.Metadata["source_vendor"] != "Acme Apparel" || p.Metadata["handle"] != "linen-shirt" {
		t.Fatalf("unexpected metadata: %#v", p.Metadata)
	}
}

func TestNormalize_PlatformProductFallbacks(t *testing.T) {
	body := `{"id": 5, "title": "Mug", "status": "published", "variants": [{"price": "n/a"}]}`

	_, cands, err := testNormalizer().Normalize([]byte(body), domain.ChannelPlatformWebhook)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	p := cands[0].Product
	if *p.Price != 0 || *p.InventoryCount != 0 {
		t.Fatalf("expected zero price and inventory, got %v/%v", *p.Price, *p.InventoryCount)
	}
	if p.Status != PolicyFor(domain.ChannelPlatformWebhook).DefaultStatus {
		t.Fatalf("expected channel default status, got %s", p.Status)
	}
	if p.Category != "general" {
		t.Fatalf("expected default category, got %q", p.Category)
	}
}

func TestNormalize_PlatformProductOversoldInventoryIsZero(t *testing.T) {
	body := `{"id": 9, "title": "Mug", "variants": [{"price": "8.00", "inventory_quantity": -4}]}`

	_, cands, err := testNormalizer().Normalize([]byte(body), domain.ChannelPlatformWebhook)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	p := cands[0].Product
	if *p.InventoryCount != 0 {
		t.Fatalf("expected negative stock clamped to 0, got %d", *p.InventoryCount)
	}
	if res := ValidateProduct(p); !res.IsValid() {
		t.Fatalf("expected oversold product to validate, got %#v", res.Issues)
	}
}

func TestNormalize_PlatformProductRequiresVariantList(t *testing.T) {
	_, cands, err := testNormalizer().Normalize([]byte(`{"id":1,"title":"Mug"}`), domain.ChannelPlatformWebhook)
	if err != nil || len(cands) != 0 {
		t.Fatalf("expected unrecognized no-op, got %d candidates err=%v", len(cands), err)
	}
}

func TestFromProduct_AppliesConversationalDefaults(t *testing.T) {
	c := testNormalizer().FromProduct("msg-1", domain.CanonicalProduct{
		ExternalID:    "msg-1",
		Title:         "  Oak chair ",
		SourceChannel: domain.ChannelConversational,
	})

	p := c.Product
	if p.Title != "Oak chair" {
		t.Fatalf("expected trimmed title, got %q", p.Title)
	}
	if p.Status != domain.StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", p.Status)
	}
	if *p.InventoryCount != 1 || *p.Price != 0 {
		t.Fatalf("unexpected defaults: inventory=%d price=%v", *p.InventoryCount, *p.Price)
	}
	if c.Ref != "msg-1" || len(c.Issues) != 0 {
		t.Fatalf("unexpected candidate: %#v", c)
	}
}

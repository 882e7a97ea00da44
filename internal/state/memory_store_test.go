package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

func TestMemoryStore_CredentialLookupByDigest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.PutCredential("sk_live_1", domain.APICredential{ID: "c1", VendorID: "V", Active: true})

	c, ok, err := s.LookupCredential(ctx, HashCredential("sk_live_1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ok || c.VendorID != "V" || c.ID != "c1" {
		t.Fatalf("unexpected credential: ok=%v c=%+v", ok, c)
	}

	_, ok, err = s.LookupCredential(ctx, HashCredential("sk_live_2"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestMemoryStore_TouchCredential(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.PutCredential("k", domain.APICredential{ID: "c1", VendorID: "V", Active: true})

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.TouchCredential(ctx, "c1", at); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _, _ := s.LookupCredential(ctx, HashCredential("k"))
	if c.LastUsedAt == nil || !c.LastUsedAt.Equal(at) {
		t.Fatalf("expected last_used_at %s, got %v", at, c.LastUsedAt)
	}
}

func TestMemoryStore_StoreMappingIsCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	s.PutStoreMapping(domain.StoreMapping{Kind: domain.LookupDomain, Key: "Acme.MyShop.com", VendorID: "V"})

	m, ok, err := s.LookupStoreMapping(context.Background(), domain.LookupDomain, "  acme.myshop.com ")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ok || m.VendorID != "V" {
		t.Fatalf("unexpected mapping: ok=%v m=%+v", ok, m)
	}

	_, ok, _ = s.LookupStoreMapping(context.Background(), domain.LookupName, "acme.myshop.com")
	if ok {
		t.Fatalf("expected lookup kinds to be separate")
	}
}

func TestMemoryStore_UpsertListingReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := domain.Listing{VendorID: "V", CanonicalProduct: domain.CanonicalProduct{ExternalID: "p1", Title: "Chair", Tags: []string{"oak"}}}
	second := domain.Listing{VendorID: "V", CanonicalProduct: domain.CanonicalProduct{ExternalID: "p1", Title: "Stool"}}

	if _, err := s.UpsertListing(ctx, first); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := s.UpsertListing(ctx, second); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if n := s.CountListings("V"); n != 1 {
		t.Fatalf("expected 1 listing, got %d", n)
	}
	got, ok, _ := s.GetListing(ctx, "V", "p1")
	if !ok || got.Title != "Stool" || got.Tags != nil {
		t.Fatalf("expected whole-record replace, got %+v", got)
	}
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.json")
	body := `{
  "credentials": [{"id": "c1", "key": "sk_test", "vendor_id": "V1", "active": true}],
  "mappings": [{"kind": "name", "key": "Acme Store", "vendor_id": "V2"}]
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}

	s := NewMemoryStore()
	if err := LoadFixtures(path, s); err != nil {
		t.Fatalf("load fixtures: %v", err)
	}

	if _, ok, _ := s.LookupCredential(context.Background(), HashCredential("sk_test")); !ok {
		t.Fatalf("expected credential to be loaded")
	}
	m, ok, _ := s.LookupStoreMapping(context.Background(), domain.LookupName, "acme store")
	if !ok || m.VendorID != "V2" {
		t.Fatalf("expected mapping to be loaded, got ok=%v m=%+v", ok, m)
	}
}

func TestLoadFixtures_RejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.json")
	_ = os.WriteFile(path, []byte(`{"mappings":[{"kind":"phone","key":"x","vendor_id":"V"}]}`), 0o600)

	if err := LoadFixtures(path, NewMemoryStore()); err == nil {
		t.Fatalf("expected error for unknown mapping kind")
	}
}

func TestListingRowRoundTripKeepsNilPointers(t *testing.T) {
	l := domain.Listing{
		VendorID: "V",
		CanonicalProduct: domain.CanonicalProduct{
			ExternalID: "p1",
			Title:      "Chair",
			Metadata:   map[string]any{"handle": "chair"},
		},
		SyncedAt: time.Now(),
	}

	r, err := toListingRow(l)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(r.TagsJSON) != "[]" {
		t.Fatalf("expected empty tags array, got %s", r.TagsJSON)
	}

	back, err := r.toListing()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if back.Price != nil || back.InventoryCount != nil {
		t.Fatalf("expected nil price and inventory, got %v %v", back.Price, back.InventoryCount)
	}
	if back.Metadata["handle"] != "chair" {
		t.Fatalf("expected metadata to survive, got %#v", back.Metadata)
	}
}

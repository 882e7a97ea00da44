package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

type CredentialStore interface {
	// LookupCredential finds a credential by the digest of its value.
	// A missing credential is (zero, false, nil).
	LookupCredential(ctx context.Context, keyHash string) (domain.APICredential, bool, error)
	TouchCredential(ctx context.Context, credentialID string, at time.Time) error
}

type MappingStore interface {
	LookupStoreMapping(ctx context.Context, kind domain.LookupKind, key string) (domain.StoreMapping, bool, error)
}

type ListingStore interface {
	// UpsertListing writes l keyed by (VendorID, ExternalID), replacing
	// every stored field on conflict.
	UpsertListing(ctx context.Context, l domain.Listing) (domain.Listing, error)
	GetListing(ctx context.Context, vendorID domain.VendorID, externalID string) (domain.Listing, bool, error)
}

type AuditStore interface {
	InsertAudit(ctx context.Context, e domain.AuditEntry) error
}

type Store interface {
	CredentialStore
	MappingStore
	ListingStore
	AuditStore
}

// HashCredential is the digest stored in place of a raw API key.
func HashCredential(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func normalizeLookupKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

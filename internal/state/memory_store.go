package state

import (
	"context"
	"sync"
	"time"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

type MemoryStore struct {
	mu sync.RWMutex

	credentials map[string]domain.APICredential                      // key hash -> credential
	mappings    map[domain.LookupKind]map[string]domain.StoreMapping // kind -> key -> mapping
	listings    map[domain.VendorID]map[string]domain.Listing        // vendor -> external id -> listing
	audit       []domain.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]domain.APICredential),
		mappings:    make(map[domain.LookupKind]map[string]domain.StoreMapping),
		listings:    make(map[domain.VendorID]map[string]domain.Listing),
	}
}

// PutCredential registers a credential under the digest of rawKey.
func (s *MemoryStore) PutCredential(rawKey string, c domain.APICredential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.KeyHash = HashCredential(rawKey)
	s.credentials[c.KeyHash] = c
}

func (s *MemoryStore) SetCredentialActive(rawKey string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := HashCredential(rawKey)
	if c, ok := s.credentials[h]; ok {
		c.Active = active
		s.credentials[h] = c
	}
}

func (s *MemoryStore) PutStoreMapping(m domain.StoreMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind, ok := s.mappings[m.Kind]
	if !ok {
		byKind = make(map[string]domain.StoreMapping)
		s.mappings[m.Kind] = byKind
	}
	m.Key = normalizeLookupKey(m.Key)
	byKind[m.Key] = m
}

func (s *MemoryStore) LookupCredential(ctx context.Context, keyHash string) (domain.APICredential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[keyHash]
	return c, ok, nil
}

func (s *MemoryStore) TouchCredential(ctx context.Context, credentialID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, c := range s.credentials {
		if c.ID == credentialID {
			t := at.UTC()
			c.LastUsedAt = &t
			s.credentials[h] = c
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) LookupStoreMapping(ctx context.Context, kind domain.LookupKind, key string) (domain.StoreMapping, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKind, ok := s.mappings[kind]
	if !ok {
		return domain.StoreMapping{}, false, nil
	}
	m, ok := byKind[normalizeLookupKey(key)]
	return m, ok, nil
}

func (s *MemoryStore) UpsertListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVendor, ok := s.listings[l.VendorID]
	if !ok {
		byVendor = make(map[string]domain.Listing)
		s.listings[l.VendorID] = byVendor
	}
	byVendor[l.ExternalID] = l
	return l, nil
}

func (s *MemoryStore) GetListing(ctx context.Context, vendorID domain.VendorID, externalID string) (domain.Listing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byVendor, ok := s.listings[vendorID]
	if !ok {
		return domain.Listing{}, false, nil
	}
	l, ok := byVendor[externalID]
	return l, ok, nil
}

// CountListings returns the number of listings held for vendorID.
func (s *MemoryStore) CountListings(vendorID domain.VendorID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listings[vendorID])
}

func (s *MemoryStore) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, e)
	return nil
}

func (s *MemoryStore) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

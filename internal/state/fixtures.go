package state

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

type fixtureFile struct {
	Credentials []struct {
		ID       string `json:"id"`
		Key      string `json:"key"`
		VendorID string `json:"vendor_id"`
		Active   bool   `json:"active"`
	} `json:"credentials"`
	Mappings []struct {
		Kind     string `json:"kind"`
		Key      string `json:"key"`
		VendorID string `json:"vendor_id"`
	} `json:"mappings"`
}

// LoadFixtures seeds credentials and store mappings into a memory store
// from a JSON file. Provisioning for the SQL backends happens out of band.
func LoadFixtures(path string, s *MemoryStore) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fixtureFile
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("parse fixtures %s: %w", path, err)
	}

	for i, c := range f.Credentials {
		if strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.VendorID) == "" {
			return fmt.Errorf("fixtures credentials[%d]: key and vendor_id are required", i)
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("cred-%d", i+1)
		}
		s.PutCredential(c.Key, domain.APICredential{
			ID:       id,
			VendorID: domain.VendorID(c.VendorID),
			Active:   c.Active,
		})
	}

	for i, m := range f.Mappings {
		kind := domain.LookupKind(strings.ToLower(strings.TrimSpace(m.Kind)))
		switch kind {
		case domain.LookupName, domain.LookupDomain, domain.LookupSender:
		default:
			return fmt.Errorf("fixtures mappings[%d]: unknown kind %q", i, m.Kind)
		}
		s.PutStoreMapping(domain.StoreMapping{
			Kind:     kind,
			Key:      m.Key,
			VendorID: domain.VendorID(m.VendorID),
		})
	}

	return nil
}

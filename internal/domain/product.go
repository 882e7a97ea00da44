package domain

import "time"

type CanonicalProduct struct {
	ExternalID     string         `json:"external_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Price          *float64       `json:"price,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Category       string         `json:"category,omitempty"`
	InventoryCount *int           `json:"inventory_count,omitempty"`
	Status         ListingStatus  `json:"status,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Images         []string       `json:"images,omitempty"`
	Location       string         `json:"location,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SourceChannel  SourceChannel  `json:"source_channel"`
}

// Listing is the persisted catalog record. (VendorID, ExternalID) is unique.
type Listing struct {
	VendorID VendorID `json:"vendor_id"`
	CanonicalProduct
	Visible  bool      `json:"visible"`
	SyncedAt time.Time `json:"synced_at"`
}

// IsCurrencyCode reports whether v is three upper-case ASCII letters.
func IsCurrencyCode(v string) bool {
	if len(v) != 3 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 'A' || v[i] > 'Z' {
			return false
		}
	}
	return true
}

func Float64(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

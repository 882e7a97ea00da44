package state

import (
	"encoding/json"
	"time"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

// listingRow is the column layout shared by the SQL stores. List and map
// fields are stored as JSON text.
type listingRow struct {
	VendorID       string
	ExternalID     string
	Title          string
	Description    string
	Price          *float64
	Currency       string
	Category       string
	InventoryCount *int
	Status         string
	TagsJSON       []byte
	ImagesJSON     []byte
	Location       string
	MetadataJSON   []byte
	SourceChannel  string
	Visible        bool
	SyncedAt       time.Time
}

func toListingRow(l domain.Listing) (listingRow, error) {
	tags, err := marshalList(l.Tags)
	if err != nil {
		return listingRow{}, err
	}
	images, err := marshalList(l.Images)
	if err != nil {
		return listingRow{}, err
	}

	meta := []byte("{}")
	if len(l.Metadata) > 0 {
		meta, err = json.Marshal(l.Metadata)
		if err != nil {
			return listingRow{}, err
		}
	}

	return listingRow{
		VendorID:       string(l.VendorID),
		ExternalID:     l.ExternalID,
		Title:          l.Title,
		Description:    l.Description,
		Price:          l.Price,
		Currency:       l.Currency,
		Category:       l.Category,
		InventoryCount: l.InventoryCount,
		Status:         string(l.Status),
		TagsJSON:       tags,
		ImagesJSON:     images,
		Location:       l.Location,
		MetadataJSON:   meta,
		SourceChannel:  string(l.SourceChannel),
		Visible:        l.Visible,
		SyncedAt:       l.SyncedAt.UTC(),
	}, nil
}

func (r listingRow) toListing() (domain.Listing, error) {
	l := domain.Listing{
		VendorID: domain.VendorID(r.VendorID),
		CanonicalProduct: domain.CanonicalProduct{
			ExternalID:     r.ExternalID,
			Title:          r.Title,
			Description:    r.Description,
			Price:          r.Price,
			Currency:       r.Currency,
			Category:       r.Category,
			InventoryCount: r.InventoryCount,
			Status:         domain.ListingStatus(r.Status),
			Location:       r.Location,
			SourceChannel:  domain.SourceChannel(r.SourceChannel),
		},
		Visible:  r.Visible,
		SyncedAt: r.SyncedAt.UTC(),
	}

	if len(r.TagsJSON) > 0 {
		if err := json.Unmarshal(r.TagsJSON, &l.Tags); err != nil {
			return domain.Listing{}, err
		}
	}
	if len(r.ImagesJSON) > 0 {
		if err := json.Unmarshal(r.ImagesJSON, &l.Images); err != nil {
			return domain.Listing{}, err
		}
	}
	if len(r.MetadataJSON) > 0 {
		if err := json.Unmarshal(r.MetadataJSON, &l.Metadata); err != nil {
			return domain.Listing{}, err
		}
		if len(l.Metadata) == 0 {
			l.Metadata = nil
		}
	}
	return l, nil
}

func marshalList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

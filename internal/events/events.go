// Package events publishes catalog change notifications for downstream
// consumers (search indexing, vendor dashboards).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

const TypeListingSynced = "listing.synced"

type ListingEvent struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	VendorID      domain.VendorID      `json:"vendor_id"`
	ExternalID    string               `json:"external_id"`
	Status        domain.ListingStatus `json:"status"`
	Visible       bool                 `json:"visible"`
	SourceChannel domain.SourceChannel `json:"source_channel"`
	SyncedAt      time.Time            `json:"synced_at"`
}

func NewListingSynced(l domain.Listing) ListingEvent {
	return ListingEvent{
		ID:            uuid.NewString(),
		Type:          TypeListingSynced,
		VendorID:      l.VendorID,
		ExternalID:    l.ExternalID,
		Status:        l.Status,
		Visible:       l.Visible,
		SourceChannel: l.SourceChannel,
		SyncedAt:      l.SyncedAt.UTC(),
	}
}

// Key partitions events so all updates to one listing stay ordered.
func (e ListingEvent) Key() string {
	return string(e.VendorID) + "/" + e.ExternalID
}

func (e ListingEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, e ListingEvent) error
	Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e ListingEvent) error {
	return nil
}

func (NoopPublisher) Close() {}

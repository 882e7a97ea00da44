// Package reconcile writes canonical products into the catalog, one
// listing per (vendor, external id).
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/events"
	"github.com/ETAnderson/vendorsync/internal/metrics"
	"github.com/ETAnderson/vendorsync/internal/state"
)

var (
	ErrIncomplete = errors.New("external_id and title are required")
	ErrStore      = errors.New("listing store failed")
)

type Reconciler struct {
	Store     state.ListingStore
	Publisher events.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Reconcile upserts p for vendorID. An existing listing with the same key
// is replaced wholesale and its synced_at refreshed.
func (r Reconciler) Reconcile(ctx context.Context, vendorID domain.VendorID, p domain.CanonicalProduct) (domain.Listing, error) {
	if strings.TrimSpace(p.ExternalID) == "" || strings.TrimSpace(p.Title) == "" {
		return domain.Listing{}, ErrIncomplete
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	l := domain.Listing{
		VendorID:         vendorID,
		CanonicalProduct: p,
		Visible:          p.Status == domain.StatusActive,
		SyncedAt:         now().UTC(),
	}

	saved, err := r.Store.UpsertListing(ctx, l)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if r.Publisher != nil {
		if err := r.Publisher.Publish(ctx, events.NewListingSynced(saved)); err != nil {
			metrics.SideEffectFailures.WithLabelValues("event").Inc()
			if r.Logger != nil {
				r.Logger.Warn("publish listing event failed",
					zap.String("vendor_id", string(vendorID)),
					zap.String("external_id", p.ExternalID),
					zap.Error(err),
				)
			}
		}
	}

	return saved, nil
}

package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) LookupCredential(ctx context.Context, keyHash string) (domain.APICredential, bool, error) {
	var c domain.APICredential
	var vendorID string
	var lastUsed sql.NullTime

	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, key_hash, vendor_id, active, last_used_at FROM api_credentials WHERE key_hash = ?`,
		keyHash,
	).Scan(&c.ID, &c.KeyHash, &vendorID, &c.Active, &lastUsed)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.APICredential{}, false, nil
	}
	if err != nil {
		return domain.APICredential{}, false, err
	}

	c.VendorID = domain.VendorID(vendorID)
	if lastUsed.Valid {
		t := lastUsed.Time.UTC()
		c.LastUsedAt = &t
	}
	return c, true, nil
}

func (s *MySQLStore) TouchCredential(ctx context.Context, credentialID string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE api_credentials SET last_used_at = ? WHERE id = ?`,
		at.UTC(), credentialID,
	)
	return err
}

func (s *MySQLStore) LookupStoreMapping(ctx context.Context, kind domain.LookupKind, key string) (domain.StoreMapping, bool, error) {
	var vendorID string
	norm := normalizeLookupKey(key)

	err := s.db.QueryRowContext(
		ctx,
		`SELECT vendor_id FROM store_mappings WHERE lookup_kind = ? AND lookup_key = ?`,
		string(kind), norm,
	).Scan(&vendorID)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoreMapping{}, false, nil
	}
	if err != nil {
		return domain.StoreMapping{}, false, err
	}
	return domain.StoreMapping{Kind: kind, Key: norm, VendorID: domain.VendorID(vendorID)}, true, nil
}

func (s *MySQLStore) UpsertListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	r, err := toListingRow(l)
	if err != nil {
		return domain.Listing{}, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO listings (
			vendor_id, external_id, title, description, price, currency, category,
			inventory_count, status, tags_json, images_json, location, metadata_json,
			source_channel, visible, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			description = VALUES(description),
			price = VALUES(price),
			currency = VALUES(currency),
			category = VALUES(category),
			inventory_count = VALUES(inventory_count),
			status = VALUES(status),
			tags_json = VALUES(tags_json),
			images_json = VALUES(images_json),
			location = VALUES(location),
			metadata_json = VALUES(metadata_json),
			source_channel = VALUES(source_channel),
			visible = VALUES(visible),
			synced_at = VALUES(synced_at)`,
		r.VendorID, r.ExternalID, r.Title, r.Description, r.Price, r.Currency, r.Category,
		r.InventoryCount, r.Status, r.TagsJSON, r.ImagesJSON, r.Location, r.MetadataJSON,
		r.SourceChannel, r.Visible, r.SyncedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (s *MySQLStore) GetListing(ctx context.Context, vendorID domain.VendorID, externalID string) (domain.Listing, bool, error) {
	var r listingRow
	var price sql.NullFloat64
	var inv sql.NullInt64

	err := s.db.QueryRowContext(
		ctx,
		`SELECT vendor_id, external_id, title, description, price, currency, category,
			inventory_count, status, tags_json, images_json, location, metadata_json,
			source_channel, visible, synced_at
		 FROM listings WHERE vendor_id = ? AND external_id = ?`,
		string(vendorID), externalID,
	).Scan(
		&r.VendorID, &r.ExternalID, &r.Title, &r.Description, &price, &r.Currency, &r.Category,
		&inv, &r.Status, &r.TagsJSON, &r.ImagesJSON, &r.Location, &r.MetadataJSON,
		&r.SourceChannel, &r.Visible, &r.SyncedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, false, nil
	}
	if err != nil {
		return domain.Listing{}, false, err
	}

	if price.Valid {
		r.Price = &price.Float64
	}
	if inv.Valid {
		n := int(inv.Int64)
		r.InventoryCount = &n
	}

	l, err := r.toListing()
	if err != nil {
		return domain.Listing{}, false, err
	}
	return l, true, nil
}

func (s *MySQLStore) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	a := toAuditRow(e)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sync_logs (
			id, vendor_id, credential_id, channel, http_status, message, duration_ms,
			client_ip, user_agent, request_id, raw_request, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, a.vendorID, e.CredentialID, string(e.Channel), e.HTTPStatus, a.message, e.Duration.Milliseconds(),
		a.clientIP, a.userAgent, a.requestID, a.rawRequest, e.CreatedAt.UTC(),
	)
	return err
}

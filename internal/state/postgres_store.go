package state

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

// executor is the subset of pgxpool.Pool the store needs.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db executor
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

func (s *PostgresStore) LookupCredential(ctx context.Context, keyHash string) (domain.APICredential, bool, error) {
	var c domain.APICredential
	var vendorID string

	err := s.db.QueryRow(
		ctx,
		`SELECT id, key_hash, vendor_id, active, last_used_at FROM api_credentials WHERE key_hash = $1`,
		keyHash,
	).Scan(&c.ID, &c.KeyHash, &vendorID, &c.Active, &c.LastUsedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APICredential{}, false, nil
	}
	if err != nil {
		return domain.APICredential{}, false, err
	}

	c.VendorID = domain.VendorID(vendorID)
	return c, true, nil
}

func (s *PostgresStore) TouchCredential(ctx context.Context, credentialID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE api_credentials SET last_used_at = $1 WHERE id = $2`, at.UTC(), credentialID)
	return err
}

func (s *PostgresStore) LookupStoreMapping(ctx context.Context, kind domain.LookupKind, key string) (domain.StoreMapping, bool, error) {
	var vendorID string
	norm := normalizeLookupKey(key)

	err := s.db.QueryRow(
		ctx,
		`SELECT vendor_id FROM store_mappings WHERE lookup_kind = $1 AND lookup_key = $2`,
		string(kind), norm,
	).Scan(&vendorID)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StoreMapping{}, false, nil
	}
	if err != nil {
		return domain.StoreMapping{}, false, err
	}
	return domain.StoreMapping{Kind: kind, Key: norm, VendorID: domain.VendorID(vendorID)}, true, nil
}

func (s *PostgresStore) UpsertListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	r, err := toListingRow(l)
	if err != nil {
		return domain.Listing{}, err
	}

	_, err = s.db.Exec(
		ctx,
		`INSERT INTO listings (
			vendor_id, external_id, title, description, price, currency, category,
			inventory_count, status, tags_json, images_json, location, metadata_json,
			source_channel, visible, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (vendor_id, external_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			category = EXCLUDED.category,
			inventory_count = EXCLUDED.inventory_count,
			status = EXCLUDED.status,
			tags_json = EXCLUDED.tags_json,
			images_json = EXCLUDED.images_json,
			location = EXCLUDED.location,
			metadata_json = EXCLUDED.metadata_json,
			source_channel = EXCLUDED.source_channel,
			visible = EXCLUDED.visible,
			synced_at = EXCLUDED.synced_at`,
		r.VendorID, r.ExternalID, r.Title, r.Description, r.Price, r.Currency, r.Category,
		r.InventoryCount, r.Status, r.TagsJSON, r.ImagesJSON, r.Location, r.MetadataJSON,
		r.SourceChannel, r.Visible, r.SyncedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

func (s *PostgresStore) GetListing(ctx context.Context, vendorID domain.VendorID, externalID string) (domain.Listing, bool, error) {
	var r listingRow

	err := s.db.QueryRow(
		ctx,
		`SELECT vendor_id, external_id, title, description, price, currency, category,
			inventory_count, status, tags_json, images_json, location, metadata_json,
			source_channel, visible, synced_at
		 FROM listings WHERE vendor_id = $1 AND external_id = $2`,
		string(vendorID), externalID,
	).Scan(
		&r.VendorID, &r.ExternalID, &r.Title, &r.Description, &r.Price, &r.Currency, &r.Category,
		&r.InventoryCount, &r.Status, &r.TagsJSON, &r.ImagesJSON, &r.Location, &r.MetadataJSON,
		&r.SourceChannel, &r.Visible, &r.SyncedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, false, nil
	}
	if err != nil {
		return domain.Listing{}, false, err
	}

	l, err := r.toListing()
	if err != nil {
		return domain.Listing{}, false, err
	}
	return l, true, nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	a := toAuditRow(e)

	_, err := s.db.Exec(
		ctx,
		`INSERT INTO sync_logs (
			id, vendor_id, credential_id, channel, http_status, message, duration_ms,
			client_ip, user_agent, request_id, raw_request, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, a.vendorID, e.CredentialID, string(e.Channel), e.HTTPStatus, a.message, e.Duration.Milliseconds(),
		a.clientIP, a.userAgent, a.requestID, a.rawRequest, e.CreatedAt.UTC(),
	)
	return err
}

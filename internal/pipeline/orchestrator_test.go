package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/extract"
	"github.com/ETAnderson/vendorsync/internal/idempotency"
	"github.com/ETAnderson/vendorsync/internal/ingest"
	"github.com/ETAnderson/vendorsync/internal/reconcile"
	"github.com/ETAnderson/vendorsync/internal/state"
	"github.com/ETAnderson/vendorsync/internal/vendor"
)

const testKey = "key-vendor-v"

type fakeExtractClient struct {
	fields extract.Fields
	err    error
	inputs []extract.Input
}

func (f *fakeExtractClient) Extract(ctx context.Context, in extract.Input) (extract.Fields, error) {
	f.inputs = append(f.inputs, in)
	return f.fields, f.err
}

type sentMessage struct {
	to   string
	body string
}

type fakeMessenger struct {
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) SendText(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return f.err
}

type fakeMedia struct{ url string }

func (f fakeMedia) MediaURL(ctx context.Context, mediaID string) (string, error) {
	if f.url == "" {
		return "", errors.New("media not found")
	}
	return f.url + "/" + mediaID, nil
}

type failingAudit struct{}

func (failingAudit) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	return errors.New("audit table locked")
}

// flakyListings fails upserts for one external id.
type flakyListings struct {
	*state.MemoryStore
	failID string
}

func (f flakyListings) UpsertListing(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if l.ExternalID == f.failID {
		return domain.Listing{}, errors.New("deadlock detected")
	}
	return f.MemoryStore.UpsertListing(ctx, l)
}

type brokenMappings struct{}

func (brokenMappings) LookupStoreMapping(ctx context.Context, kind domain.LookupKind, key string) (domain.StoreMapping, bool, error) {
	return domain.StoreMapping{}, false, errors.New("connection refused")
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicking" }

func (panickingStrategy) Attempt(ctx context.Context, req vendor.Request) (vendor.Result, error) {
	panic("nil map write")
}

type harness struct {
	orch      *Orchestrator
	store     *state.MemoryStore
	messenger *fakeMessenger
	extractor *fakeExtractClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := state.NewMemoryStore()
	store.PutCredential(testKey, domain.APICredential{ID: "cred-1", VendorID: "V", Active: true})
	store.PutStoreMapping(domain.StoreMapping{Kind: domain.LookupDomain, Key: "oak-and-iron.example", VendorID: "W"})
	store.PutStoreMapping(domain.StoreMapping{Kind: domain.LookupSender, Key: "15550001111", VendorID: "M"})

	h := &harness{
		store:     store,
		messenger: &fakeMessenger{},
		extractor: &fakeExtractClient{},
	}
	h.orch = &Orchestrator{
		Resolver: vendor.NewResolver(
			vendor.CredentialStrategy{Store: store},
			vendor.StoreMappingStrategy{Store: store},
		),
		Normalizer:  ingest.Normalizer{DefaultCategory: "general", DefaultCurrency: "USD"},
		Extractor:   extract.Adapter{Client: h.extractor},
		Reconciler:  reconcile.Reconciler{Store: store},
		Audit:       store,
		Messenger:   h.messenger,
		Media:       fakeMedia{url: "https://media.example"},
		Dedupe:      idempotency.NewMemoryStore(time.Hour),
		VerifyToken: "verify-me",
	}
	return h
}

func push(body string) SyncRequest {
	return SyncRequest{
		Method:        http.MethodPost,
		Channel:       domain.ChannelPush,
		Authorization: "Bearer " + testKey,
		Body:          []byte(body),
		Client:        domain.ClientMetadata{IP: "203.0.113.9", RequestID: "req-1"},
	}
}

func bodyMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	m, ok := resp.Body.(map[string]any)
	require.True(t, ok, "unexpected body type %T", resp.Body)
	return m
}

func TestSync_ChairExample(t *testing.T) {
	h := newHarness(t)

	resp := h.orch.Sync(context.Background(), push(`{"products":[{"external_id":"p1","title":"Chair","price":49.99}]}`))

	require.Equal(t, http.StatusOK, resp.Status)
	body := bodyMap(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, body["processed_count"])
	assert.Equal(t, 0, body["error_count"])
	assert.NotContains(t, body, "errors")

	l, ok, err := h.store.GetListing(context.Background(), "V", "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Chair", l.Title)
	assert.Equal(t, 49.99, *l.Price)
	assert.Equal(t, domain.StatusActive, l.Status)
	assert.True(t, l.Visible)
}

func TestSync_SecondSubmissionReplacesFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.orch.Sync(ctx, push(`{"products":[{"external_id":"p1","title":"Chair","price":49.99}]}`))
	resp := h.orch.Sync(ctx, push(`{"products":[{"external_id":"p1","title":"Armchair","price":80}]}`))

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, h.store.CountListings("V"))
	l, _, _ := h.store.GetListing(ctx, "V", "p1")
	assert.Equal(t, "Armchair", l.Title)
	assert.Equal(t, 80.0, *l.Price)
}

func TestSync_ProductsFieldShape(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"empty array", `{"products":[]}`, http.StatusOK, ""},
		{"not an array", `{"products":{"external_id":"p1"}}`, http.StatusBadRequest, ingest.ErrProductsNotArray.Error()},
		{"missing", `{"items":[]}`, http.StatusBadRequest, ingest.ErrProductsMissing.Error()},
		{"malformed", `{"products":[`, http.StatusBadRequest, ingest.ErrMalformedBody.Error()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)

			resp := h.orch.Sync(context.Background(), push(tc.body))

			require.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantError == "" {
				assert.Equal(t, 0, bodyMap(t, resp)["processed_count"])
				return
			}
			assert.Equal(t, map[string]string{"error": tc.wantError}, resp.Body)
		})
	}
}

func TestSync_MissingTitleIsItemScoped(t *testing.T) {
	h := newHarness(t)

	resp := h.orch.Sync(context.Background(), push(`{"products":[{"external_id":"p1"},{"external_id":"p2","title":"Lamp"}]}`))

	require.Equal(t, http.StatusOK, resp.Status)
	body := bodyMap(t, resp)
	assert.Equal(t, 1, body["processed_count"])
	assert.Equal(t, 1, body["error_count"])
	assert.Equal(t, []string{"p1: title is required"}, body["errors"])

	_, ok, _ := h.store.GetListing(context.Background(), "V", "p2")
	assert.True(t, ok)
}

func TestSync_PersistenceFailureIsItemScoped(t *testing.T) {
	h := newHarness(t)
	h.orch.Reconciler = reconcile.Reconciler{Store: flakyListings{MemoryStore: h.store, failID: "p1"}}

	resp := h.orch.Sync(context.Background(), push(`{"products":[{"external_id":"p1","title":"A"},{"external_id":"p2","title":"B"}]}`))

	require.Equal(t, http.StatusOK, resp.Status)
	body := bodyMap(t, resp)
	assert.Equal(t, 1, body["processed_count"])
	assert.Equal(t, []string{"p1: persistence_failed"}, body["errors"])
}

func TestSync_VendorRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(h *harness, req *SyncRequest)
		reason string
	}{
		{"unknown key", func(h *harness, req *SyncRequest) { req.Authorization = "Bearer nope" }, "invalid_credential"},
		{"deactivated key", func(h *harness, req *SyncRequest) { h.store.SetCredentialActive(testKey, false) }, "invalid_credential"},
		{"no identifier", func(h *harness, req *SyncRequest) { req.Authorization = "" }, "missing_vendor_identifier"},
		{"unmapped store", func(h *harness, req *SyncRequest) {
			req.Authorization = ""
			req.Body = []byte(`{"store_name":"Nobody","products":[]}`)
		}, "vendor_unmapped"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			req := push(`{"products":[]}`)
			tc.mutate(h, &req)

			resp := h.orch.Sync(context.Background(), req)

			assert.Equal(t, http.StatusUnauthorized, resp.Status)
			assert.Equal(t, map[string]string{"error": tc.reason}, resp.Body)

			entries := h.store.AuditEntries()
			require.Len(t, entries, 1)
			assert.Nil(t, entries[0].VendorID)
			require.NotNil(t, entries[0].RawRequest)
		})
	}
}

func TestSync_PlatformWebhookByShopDomain(t *testing.T) {
	h := newHarness(t)
	h.orch.PlatformWebhookToken = "hook-secret"

	req := SyncRequest{
		Method:  http.MethodPost,
		Channel: domain.ChannelPlatformWebhook,
		Header: http.Header{
			"X-Shop-Domain":   []string{"Oak-and-Iron.example"},
			"X-Webhook-Token": []string{"hook-secret"},
		},
		Body: []byte(`{"id":8812,"title":"Bench","vendor":"Oak & Iron","variants":[{"price":"120.00"}]}`),
	}
	resp := h.orch.Sync(context.Background(), req)

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, bodyMap(t, resp)["synced"])

	l, ok, _ := h.store.GetListing(context.Background(), "W", "8812")
	require.True(t, ok)
	assert.Equal(t, 120.0, *l.Price)
	assert.Equal(t, 0, *l.InventoryCount)

	req.Header.Set("X-Webhook-Token", "wrong")
	resp = h.orch.Sync(context.Background(), req)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, map[string]string{"error": "invalid_webhook_token"}, resp.Body)
	assert.Len(t, h.store.AuditEntries(), 2)
}

func TestSync_PlatformWebhookUnrecognizedIsNoop(t *testing.T) {
	h := newHarness(t)

	resp := h.orch.Sync(context.Background(), SyncRequest{
		Method:        http.MethodPost,
		Channel:       domain.ChannelPlatformWebhook,
		Authorization: "Bearer " + testKey,
		Body:          []byte(`{"topic":"app/uninstalled"}`),
	})

	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 0, bodyMap(t, resp)["synced"])
}

func TestSync_NonPostIsRejectedWithoutAudit(t *testing.T) {
	h := newHarness(t)
	req := push(`{"products":[]}`)
	req.Method = http.MethodGet

	resp := h.orch.Sync(context.Background(), req)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
	assert.Empty(t, h.store.AuditEntries())
}

func TestSync_WritesOneAuditEntryOnSuccess(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h.orch.Now = func() time.Time { return start.Add(250 * time.Millisecond) }

	req := push(`{"products":[{"external_id":"p1","title":"Chair"}]}`)
	req.Received = start
	h.orch.Sync(context.Background(), req)

	entries := h.store.AuditEntries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, http.StatusOK, e.HTTPStatus)
	require.NotNil(t, e.VendorID)
	assert.Equal(t, domain.VendorID("V"), *e.VendorID)
	require.NotNil(t, e.CredentialID)
	assert.Equal(t, "cred-1", *e.CredentialID)
	assert.Nil(t, e.RawRequest)
	assert.Equal(t, 250*time.Millisecond, e.Duration)
	assert.Equal(t, "203.0.113.9", e.Client.IP)
	assert.Equal(t, "native_batch: accepted 1, rejected 0", e.Message)
	assert.NotEmpty(t, e.ID)
}

func TestSync_AuditFailureDoesNotChangeResponse(t *testing.T) {
	h := newHarness(t)
	h.orch.Audit = failingAudit{}

	resp := h.orch.Sync(context.Background(), push(`{"products":[{"external_id":"p1","title":"Chair"}]}`))

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, bodyMap(t, resp)["processed_count"])
}

func TestSync_PanicBecomesInternalError(t *testing.T) {
	h := newHarness(t)
	h.orch.Resolver = vendor.NewResolver(panickingStrategy{})

	resp := h.orch.Sync(context.Background(), push(`{"products":[]}`))

	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, map[string]string{"error": "internal_error"}, resp.Body)
	entries := h.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusInternalServerError, entries[0].HTTPStatus)
	assert.Contains(t, entries[0].Message, "nil map write")
}

func TestSync_LookupFailureBeforeBatchIs500(t *testing.T) {
	h := newHarness(t)
	h.orch.Resolver = vendor.NewResolver(vendor.StoreMappingStrategy{Store: brokenMappings{}})

	req := push(`{"store_name":"Oak","products":[]}`)
	req.Authorization = ""
	resp := h.orch.Sync(context.Background(), req)

	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, map[string]string{"error": "internal_error"}, resp.Body)
}

func TestVerify(t *testing.T) {
	h := newHarness(t)

	ok := h.orch.Verify(url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"verify-me"},
		"hub.challenge":    {"1158201444"},
	})
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, "1158201444", ok.Body)
	assert.Contains(t, ok.ContentType, "text/plain")

	bad := h.orch.Verify(url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"guess"},
		"hub.challenge":    {"1158201444"},
	})
	assert.Equal(t, http.StatusForbidden, bad.Status)
	assert.Equal(t, map[string]string{"error": "forbidden"}, bad.Body)
}

func TestAsError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), validationError("products must be an array", nil))

	assert.Equal(t, ValidationError, asError(wrapped).Kind)
	assert.Equal(t, "products must be an array", asError(wrapped).PublicReason())
	assert.Equal(t, AuthError, asError(authError("invalid_credential")).Kind)

	unexpected := asError(errors.New("boom"))
	assert.Equal(t, InternalError, unexpected.Kind)
	assert.Equal(t, "internal_error", unexpected.PublicReason())
	assert.Equal(t, http.StatusInternalServerError, UpstreamError.Status())
}

func TestSync_UnknownChannelIs500(t *testing.T) {
	h := newHarness(t)

	resp := h.orch.Sync(context.Background(), SyncRequest{
		Method:        http.MethodPost,
		Channel:       domain.SourceChannel("fax"),
		Authorization: "Bearer " + testKey,
		Body:          []byte(`{"products":[]}`),
	})

	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, map[string]string{"error": "internal_error"}, resp.Body)
	require.Len(t, h.store.AuditEntries(), 1)
}

func TestSync_OversizedBodyIsAudited400(t *testing.T) {
	h := newHarness(t)
	req := push(`{"products":[`)
	req.ReadErr = ErrBodyTooLarge

	resp := h.orch.Sync(context.Background(), req)

	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, map[string]string{"error": "request_body_too_large"}, resp.Body)
	assert.Len(t, h.store.AuditEntries(), 1)
}

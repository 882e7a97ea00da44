// Package pipeline runs one sync request end to end: vendor resolution,
// normalization or extraction, per-item reconciliation, the response and
// its audit entry.
package pipeline

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/extract"
	"github.com/ETAnderson/vendorsync/internal/idempotency"
	"github.com/ETAnderson/vendorsync/internal/ingest"
	"github.com/ETAnderson/vendorsync/internal/messaging"
	"github.com/ETAnderson/vendorsync/internal/metrics"
	"github.com/ETAnderson/vendorsync/internal/reconcile"
	"github.com/ETAnderson/vendorsync/internal/state"
	"github.com/ETAnderson/vendorsync/internal/vendor"
)

var ErrBodyTooLarge = errors.New("request body exceeds the size limit")

const (
	HeaderShopDomain   = "X-Shop-Domain"
	HeaderWebhookToken = "X-Webhook-Token"
)

// Orchestrator holds every collaborator a sync request needs. All of them
// are built by the process entry point.
type Orchestrator struct {
	Resolver   *vendor.Resolver
	Normalizer ingest.Normalizer
	Extractor  extract.Adapter
	Reconciler reconcile.Reconciler
	Audit      state.AuditStore

	// Conversational collaborators. Any of them may be nil.
	Messenger messaging.Messenger
	Media     messaging.MediaResolver
	Dedupe    idempotency.Store

	// VerifyToken guards the conversational subscription handshake.
	VerifyToken string
	// PlatformWebhookToken, when set, must be echoed in X-Webhook-Token.
	PlatformWebhookToken string

	Logger *zap.Logger
	Now    func() time.Time
}

type SyncRequest struct {
	Method        string
	Channel       domain.SourceChannel
	Authorization string
	Header        http.Header
	Body          []byte
	// ReadErr is set when the body could not be read in full.
	ReadErr  error
	Client   domain.ClientMetadata
	Received time.Time
}

// Response is rendered as JSON unless ContentType says otherwise.
type Response struct {
	Status      int
	Body        any
	ContentType string
}

func errorResponse(status int, code string) Response {
	return Response{Status: status, Body: map[string]string{"error": code}}
}

// trail collects what the audit entry needs while the request runs.
type trail struct {
	vendorID     *domain.VendorID
	credentialID *string
	message      string
}

func (t *trail) identify(id vendor.Identity) {
	v := id.VendorID
	t.vendorID = &v
	if id.CredentialID != "" {
		c := id.CredentialID
		t.credentialID = &c
	}
}

// Sync handles one request on req.Channel. It always returns a response;
// failures are mapped onto status codes and every request past method
// validation leaves exactly one audit entry.
func (o *Orchestrator) Sync(ctx context.Context, req SyncRequest) (resp Response) {
	if req.Method != http.MethodPost {
		return errorResponse(http.StatusMethodNotAllowed, "method_not_allowed")
	}

	start := req.Received
	if start.IsZero() {
		start = o.now()
	}
	log := o.logger().With(
		zap.String("channel", string(req.Channel)),
		zap.String("request_id", req.Client.RequestID),
	)
	tr := &trail{}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("sync panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			tr.message = fmt.Sprintf("panic: %v", rec)
			resp = errorResponse(http.StatusInternalServerError, "internal_error")
		}
		metrics.SyncRequests.WithLabelValues(string(req.Channel), strconv.Itoa(resp.Status)).Inc()
		o.writeAudit(ctx, log, req, resp, tr, start)
	}()

	var err error
	switch {
	case !req.Channel.Valid():
		err = &Error{Kind: InternalError, Reason: "unknown_channel", Err: fmt.Errorf("channel %q", req.Channel)}
	case req.ReadErr != nil:
		err = bodyError(req.ReadErr)
	case req.Channel == domain.ChannelConversational:
		resp, err = o.syncConversational(ctx, log, req, tr)
	default:
		resp, err = o.syncStructured(ctx, log, req, tr)
	}
	if err != nil {
		return o.failure(log, err, tr)
	}
	return resp
}

func bodyError(err error) error {
	if errors.Is(err, ErrBodyTooLarge) {
		return validationError("request_body_too_large", err)
	}
	return validationError("request body could not be read", err)
}

func (o *Orchestrator) failure(log *zap.Logger, err error, tr *trail) Response {
	pe := asError(err)
	tr.message = pe.Error()

	switch pe.Kind {
	case AuthError:
		log.Info("vendor rejected", zap.String("reason", pe.Reason))
	case ValidationError:
		log.Info("request rejected", zap.String("reason", pe.Reason), zap.Error(pe.Err))
	default:
		log.Error("sync failed", zap.Stringer("kind", pe.Kind), zap.String("reason", pe.Reason), zap.Error(pe.Err))
	}
	return errorResponse(pe.Kind.Status(), pe.PublicReason())
}

// syncStructured serves the push and platform webhook channels.
func (o *Orchestrator) syncStructured(ctx context.Context, log *zap.Logger, req SyncRequest, tr *trail) (Response, error) {
	if req.Channel == domain.ChannelPlatformWebhook && o.PlatformWebhookToken != "" {
		if !constantTimeEqual(headerValue(req.Header, HeaderWebhookToken), o.PlatformWebhookToken) {
			return Response{}, authError("invalid_webhook_token")
		}
	}

	id, err := o.resolve(ctx, vendor.Request{
		BearerToken: vendor.ParseBearer(req.Authorization),
		Identifiers: structuredIdentifiers(req.Header, req.Body),
	})
	if err != nil {
		return Response{}, err
	}
	tr.identify(id)

	shape, candidates, err := o.Normalizer.Normalize(req.Body, req.Channel)
	if err != nil {
		return Response{}, validationError(err.Error(), err)
	}
	log.Debug("payload classified", zap.String("shape", string(shape)), zap.Int("candidates", len(candidates)))

	outcome := o.process(ctx, log, id.VendorID, req.Channel, candidates, nil)
	tr.message = string(shape) + ": " + summary(outcome)
	return successResponse(req.Channel, outcome), nil
}

func (o *Orchestrator) resolve(ctx context.Context, req vendor.Request) (vendor.Identity, error) {
	id, err := o.Resolver.Resolve(ctx, req)
	if err == nil {
		return id, nil
	}
	var rej *vendor.RejectError
	if errors.As(err, &rej) {
		return vendor.Identity{}, authError(string(rej.Reason))
	}
	return vendor.Identity{}, upstreamError("vendor_lookup", err)
}

// process validates and reconciles candidates in order. Failures are
// recorded per item and never stop the batch. onAccepted runs after each
// successful upsert.
func (o *Orchestrator) process(
	ctx context.Context,
	log *zap.Logger,
	vendorID domain.VendorID,
	channel domain.SourceChannel,
	candidates []ingest.Candidate,
	onAccepted func(ingest.Candidate, domain.Listing),
) domain.SyncOutcome {
	var out domain.SyncOutcome
	for _, c := range candidates {
		if reason := candidateProblem(c); reason != "" {
			out.Reject(c.Ref, reason)
			metrics.SyncItems.WithLabelValues(string(channel), string(domain.ItemRejected)).Inc()
			continue
		}

		l, err := o.Reconciler.Reconcile(ctx, vendorID, c.Product)
		if err != nil {
			log.Warn("listing upsert failed",
				zap.String("vendor_id", string(vendorID)),
				zap.String("external_id", c.Product.ExternalID),
				zap.Error(err),
			)
			out.Reject(c.Ref, "persistence_failed")
			metrics.SyncItems.WithLabelValues(string(channel), string(domain.ItemRejected)).Inc()
			continue
		}

		out.Accepted++
		metrics.SyncItems.WithLabelValues(string(channel), string(domain.ItemAccepted)).Inc()
		if onAccepted != nil {
			onAccepted(c, l)
		}
	}
	return out
}

func candidateProblem(c ingest.Candidate) string {
	if len(c.Issues) > 0 {
		return ingest.ValidationResult{Issues: c.Issues}.Reason()
	}
	if res := ingest.ValidateProduct(c.Product); !res.IsValid() {
		return res.Reason()
	}
	return ""
}

func successResponse(channel domain.SourceChannel, out domain.SyncOutcome) Response {
	body := map[string]any{
		"success":     true,
		"error_count": len(out.Rejected),
	}
	body[ingest.PolicyFor(channel).CountKey] = out.Accepted
	if len(out.Rejected) > 0 {
		msgs := make([]string, 0, len(out.Rejected))
		for _, r := range out.Rejected {
			msgs = append(msgs, r.Ref+": "+r.Reason)
		}
		body["errors"] = msgs
	}
	return Response{Status: http.StatusOK, Body: body}
}

func summary(out domain.SyncOutcome) string {
	return fmt.Sprintf("accepted %d, rejected %d", out.Accepted, len(out.Rejected))
}

func (o *Orchestrator) writeAudit(ctx context.Context, log *zap.Logger, req SyncRequest, resp Response, tr *trail, start time.Time) {
	if o.Audit == nil {
		return
	}

	now := o.now()
	e := domain.AuditEntry{
		ID:           uuid.NewString(),
		VendorID:     tr.vendorID,
		CredentialID: tr.credentialID,
		Channel:      req.Channel,
		HTTPStatus:   resp.Status,
		Message:      tr.message,
		Duration:     now.Sub(start),
		Client:       req.Client,
		CreatedAt:    now.UTC(),
	}
	if resp.Status < 200 || resp.Status > 299 {
		raw := string(req.Body)
		e.RawRequest = &raw
	}

	// The caller may already be gone; the entry is still wanted.
	if err := o.Audit.InsertAudit(context.WithoutCancel(ctx), e); err != nil {
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		log.Error("audit write failed", zap.Int("status", resp.Status), zap.Error(err))
	}
}

// Verify answers the messaging platform's subscription handshake.
func (o *Orchestrator) Verify(query url.Values) Response {
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")
	if mode == "subscribe" && o.VerifyToken != "" && constantTimeEqual(token, o.VerifyToken) {
		return Response{Status: http.StatusOK, Body: challenge, ContentType: "text/plain; charset=utf-8"}
	}
	o.logger().Info("verification handshake refused", zap.String("mode", mode))
	return errorResponse(http.StatusForbidden, "forbidden")
}

// structuredIdentifiers reads the vendor hints push and platform callers
// send when they have no credential.
func structuredIdentifiers(h http.Header, body []byte) vendor.Identifiers {
	var hints struct {
		StoreName  string `json:"store_name"`
		VendorName string `json:"vendor_name"`
		ShopDomain string `json:"shop_domain"`
	}
	if t := bytes.TrimSpace(body); len(t) > 0 && t[0] == '{' {
		// Type mismatches leave the hint empty; the normalizer reports the body.
		_ = json.Unmarshal(t, &hints)
	}

	return vendor.Identifiers{
		Name:   firstNonEmpty(hints.StoreName, hints.VendorName),
		Domain: firstNonEmpty(headerValue(h, HeaderShopDomain), hints.ShopDomain),
	}
}

func headerValue(h http.Header, key string) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h.Get(key))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/extract"
	"github.com/ETAnderson/vendorsync/internal/ingest"
	"github.com/ETAnderson/vendorsync/internal/metrics"
	"github.com/ETAnderson/vendorsync/internal/vendor"
)

// envelope is the messaging platform's webhook payload. Status callbacks
// carry no messages.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image *struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"image"`
}

func (m inboundMessage) content() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Image != nil:
		return m.Image.Caption
	default:
		return ""
	}
}

func (e envelope) messages() []inboundMessage {
	var out []inboundMessage
	for _, entry := range e.Entry {
		for _, ch := range entry.Changes {
			out = append(out, ch.Value.Messages...)
		}
	}
	return out
}

// acknowledgment is queued for a sender once their listing is stored.
type acknowledgment struct {
	to       string
	listing  domain.Listing
	fallback bool
}

// syncConversational turns each message into one listing keyed by its
// message id, so redelivery overwrites instead of duplicating.
func (o *Orchestrator) syncConversational(ctx context.Context, log *zap.Logger, req SyncRequest, tr *trail) (Response, error) {
	var env envelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return Response{}, validationError(ingest.ErrMalformedBody.Error(), err)
	}

	msgs := env.messages()
	if len(msgs) == 0 {
		tr.message = "no messages"
		return successResponse(req.Channel, domain.SyncOutcome{}), nil
	}

	// The platform delivers one sender per webhook; the first message
	// decides the vendor.
	sender := strings.TrimSpace(msgs[0].From)
	id, err := o.resolve(ctx, vendor.Request{
		BearerToken: vendor.ParseBearer(req.Authorization),
		Identifiers: vendor.Identifiers{Sender: sender},
	})
	if err != nil {
		return Response{}, err
	}
	tr.identify(id)

	var (
		outcome    domain.SyncOutcome
		candidates []ingest.Candidate
		fallbacks  = make(map[string]bool)
	)
	for i, m := range msgs {
		ref := "message[" + strconv.Itoa(i) + "]"
		switch {
		case strings.TrimSpace(m.From) != sender:
			outcome.Reject(ref, "vendor_mismatch")
			continue
		case strings.TrimSpace(m.ID) == "":
			outcome.Reject(ref, "message id is required")
			continue
		case m.Type != "text" && m.Type != "image":
			outcome.Reject("msg-"+m.ID, "unsupported_message_type")
			continue
		}

		if !o.claimMessage(ctx, log, m.ID) {
			log.Debug("duplicate message skipped", zap.String("message_id", m.ID))
			continue
		}

		c, fallback := o.candidateFromMessage(ctx, log, m)
		fallbacks[c.Ref] = fallback
		candidates = append(candidates, c)
	}

	var acks []acknowledgment
	processed := o.process(ctx, log, id.VendorID, req.Channel, candidates, func(c ingest.Candidate, l domain.Listing) {
		acks = append(acks, acknowledgment{to: sender, listing: l, fallback: fallbacks[c.Ref]})
	})
	outcome.Accepted += processed.Accepted
	outcome.Rejected = append(outcome.Rejected, processed.Rejected...)

	for _, a := range acks {
		o.acknowledge(ctx, log, a)
	}

	tr.message = summary(outcome)
	return successResponse(req.Channel, outcome), nil
}

// claimMessage reports whether this is the first time id was seen. A
// broken dedupe store lets the message through; the upsert is idempotent.
func (o *Orchestrator) claimMessage(ctx context.Context, log *zap.Logger, id string) bool {
	if o.Dedupe == nil {
		return true
	}
	first, err := o.Dedupe.Claim(ctx, "message:"+id)
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues("dedupe").Inc()
		log.Warn("message dedupe unavailable", zap.String("message_id", id), zap.Error(err))
		return true
	}
	return first
}

func (o *Orchestrator) candidateFromMessage(ctx context.Context, log *zap.Logger, m inboundMessage) (ingest.Candidate, bool) {
	in := extract.Input{Text: m.content()}
	if m.Image != nil && m.Image.ID != "" {
		in.HasMedia = true
		in.ImageURL = o.mediaURL(ctx, log, m.Image.ID)
	}

	frag := o.Extractor.Extract(ctx, in)

	extraction := "model"
	if frag.Fallback {
		extraction = "fallback"
	}
	p := domain.CanonicalProduct{
		ExternalID:    "msg-" + m.ID,
		Title:         frag.Title,
		Description:   frag.Description,
		Price:         frag.Price,
		Currency:      frag.Currency,
		Category:      frag.Category,
		Status:        frag.Status,
		Tags:          frag.Tags,
		Location:      frag.Location,
		SourceChannel: domain.ChannelConversational,
		Metadata: map[string]any{
			"sender":     m.From,
			"message_id": m.ID,
			"extraction": extraction,
		},
	}
	if in.ImageURL != "" {
		p.Images = []string{in.ImageURL}
	}
	if frag.Fallback {
		p.Status = domain.StatusDraft
	}

	return o.Normalizer.FromProduct(p.ExternalID, p), frag.Fallback
}

func (o *Orchestrator) mediaURL(ctx context.Context, log *zap.Logger, mediaID string) string {
	if o.Media == nil {
		return ""
	}
	u, err := o.Media.MediaURL(ctx, mediaID)
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues("media").Inc()
		log.Warn("media lookup failed", zap.String("media_id", mediaID), zap.Error(err))
		return ""
	}
	return u
}

func (o *Orchestrator) acknowledge(ctx context.Context, log *zap.Logger, a acknowledgment) {
	if o.Messenger == nil {
		return
	}
	if err := o.Messenger.SendText(ctx, a.to, ackText(a)); err != nil {
		metrics.SideEffectFailures.WithLabelValues("ack").Inc()
		log.Warn("acknowledgment failed",
			zap.String("external_id", a.listing.ExternalID),
			zap.Error(err),
		)
	}
}

func ackText(a acknowledgment) string {
	if a.fallback {
		return "Thanks! We saved \"" + a.listing.Title + "\" as a draft for review."
	}

	var b strings.Builder
	b.WriteString("Got it! \"" + a.listing.Title + "\" was received")
	if a.listing.Price != nil && *a.listing.Price > 0 {
		b.WriteString(" at " + strconv.FormatFloat(*a.listing.Price, 'f', 2, 64))
		if a.listing.Currency != "" {
			b.WriteString(" " + a.listing.Currency)
		}
	}
	if a.listing.Visible {
		b.WriteString(" and is now live.")
	} else {
		b.WriteString(" and is pending review.")
	}
	return b.String()
}

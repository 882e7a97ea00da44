package domain

import "time"

type ItemRejection struct {
	Ref    string
	Reason string
}

type SyncOutcome struct {
	Accepted int
	Rejected []ItemRejection
}

func (o *SyncOutcome) Reject(ref, reason string) {
	o.Rejected = append(o.Rejected, ItemRejection{Ref: ref, Reason: reason})
}

type ClientMetadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// AuditEntry is appended once per request, whatever the outcome.
type AuditEntry struct {
	ID           string
	VendorID     *VendorID
	CredentialID *string
	Channel      SourceChannel
	HTTPStatus   int
	Message      string
	Duration     time.Duration
	Client       ClientMetadata
	RawRequest   *string
	CreatedAt    time.Time
}

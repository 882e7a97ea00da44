package domain

// ItemDisposition labels the per-item result of a sync request.
type ItemDisposition string

const (
	ItemAccepted ItemDisposition = "accepted"
	ItemRejected ItemDisposition = "rejected"
)

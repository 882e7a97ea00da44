package domain

import "time"

type VendorID string

type APICredential struct {
	ID         string
	KeyHash    string
	VendorID   VendorID
	Active     bool
	LastUsedAt *time.Time
}

type LookupKind string

const (
	LookupName   LookupKind = "name"
	LookupDomain LookupKind = "domain"
	LookupSender LookupKind = "sender"
)

type StoreMapping struct {
	Kind     LookupKind
	Key      string
	VendorID VendorID
}

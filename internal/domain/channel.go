package domain

import "strings"

// SourceChannel identifies the entry point a product arrived through.
type SourceChannel string

const (
	ChannelPush            SourceChannel = "push"
	ChannelPlatformWebhook SourceChannel = "platform_webhook"
	ChannelConversational  SourceChannel = "conversational"
)

func (c SourceChannel) Valid() bool {
	switch c {
	case ChannelPush, ChannelPlatformWebhook, ChannelConversational:
		return true
	default:
		return false
	}
}

type ListingStatus string

const (
	StatusActive        ListingStatus = "active"
	StatusDraft         ListingStatus = "draft"
	StatusInactive      ListingStatus = "inactive"
	StatusArchived      ListingStatus = "archived"
	StatusPendingReview ListingStatus = "pending_review"
)

// ParseListingStatus lowercases and trims v. ok is false for anything
// outside the allowed set.
func ParseListingStatus(v string) (ListingStatus, bool) {
	s := ListingStatus(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case StatusActive, StatusDraft, StatusInactive, StatusArchived, StatusPendingReview:
		return s, true
	default:
		return "", false
	}
}

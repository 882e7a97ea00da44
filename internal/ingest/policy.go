package ingest

import "github.com/ETAnderson/vendorsync/internal/domain"

// Policy holds the per-channel normalization defaults. The channels trust
// their callers differently, so the defaults are deliberately not unified.
type Policy struct {
	Channel          domain.SourceChannel
	DefaultInventory int
	DefaultStatus    domain.ListingStatus

	// CountKey names the success counter in the response body.
	CountKey string

	// ExpectProducts makes a missing or non-array "products" field a
	// validation error instead of an empty result.
	ExpectProducts bool
}

var policies = map[domain.SourceChannel]Policy{
	domain.ChannelPush: {
		Channel:          domain.ChannelPush,
		DefaultInventory: 1,
		DefaultStatus:    domain.StatusActive,
		CountKey:         "processed_count",
		ExpectProducts:   true,
	},
	domain.ChannelPlatformWebhook: {
		Channel:          domain.ChannelPlatformWebhook,
		DefaultInventory: 0,
		DefaultStatus:    domain.StatusActive,
		CountKey:         "synced",
	},
	domain.ChannelConversational: {
		Channel:          domain.ChannelConversational,
		DefaultInventory: 1,
		DefaultStatus:    domain.StatusPendingReview,
		CountKey:         "processed_count",
	},
}

// PolicyFor returns the policy for c. Unknown channels get the push policy.
func PolicyFor(c domain.SourceChannel) Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[domain.ChannelPush]
}

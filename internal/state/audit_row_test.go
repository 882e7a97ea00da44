package state

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

func TestTruncateRaw_KeepsCharactersWhole(t *testing.T) {
	raw := strings.Repeat("a", maxRawRequestBytes-1) + "é"

	got := truncateRaw(&raw, maxRawRequestBytes)

	if !utf8.ValidString(*got) {
		t.Fatalf("expected valid UTF-8 after truncation")
	}
	if len(*got) != maxRawRequestBytes-1 {
		t.Fatalf("expected cut before the split character, got len=%d", len(*got))
	}
}

func TestTruncateRaw_ShortAndNil(t *testing.T) {
	if truncateRaw(nil, 10) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	raw := `{"products":[]}`
	if got := truncateRaw(&raw, 1024); *got != raw {
		t.Fatalf("expected short body unchanged, got %q", *got)
	}
	bad := "ok\xff\x00done"
	if got := truncateRaw(&bad, 1024); *got != "okdone" {
		t.Fatalf("expected invalid bytes dropped, got %q", *got)
	}
}

func TestToAuditRow_FitsColumns(t *testing.T) {
	vendorID := domain.VendorID("V")
	e := domain.AuditEntry{
		VendorID: &vendorID,
		Message:  "panic: " + strings.Repeat("ü", 2000),
		Client: domain.ClientMetadata{
			UserAgent: strings.Repeat("x", 600),
			RequestID: strings.Repeat("r", 100),
		},
	}

	a := toAuditRow(e)

	if n := utf8.RuneCountInString(a.message); n != maxMessageChars {
		t.Fatalf("expected message cut to %d chars, got %d", maxMessageChars, n)
	}
	if !utf8.ValidString(a.message) {
		t.Fatalf("expected valid UTF-8 message")
	}
	if len(a.userAgent) != maxUserAgentChars || len(a.requestID) != maxShortFieldChars {
		t.Fatalf("unexpected lengths ua=%d rid=%d", len(a.userAgent), len(a.requestID))
	}
	if a.vendorID == nil || *a.vendorID != "V" || a.rawRequest != nil {
		t.Fatalf("unexpected row: %+v", a)
	}
}

package state

import (
	"strings"
	"unicode/utf8"

	"github.com/ETAnderson/vendorsync/internal/domain"
)

// Column limits of sync_logs. VARCHAR widths count characters.
const (
	maxMessageChars    = 1024
	maxUserAgentChars  = 512
	maxShortFieldChars = 64
	maxRawRequestBytes = 64 << 10
)

// auditRow holds the sync_logs values that need fitting to the schema.
type auditRow struct {
	vendorID   *string
	message    string
	clientIP   string
	userAgent  string
	requestID  string
	rawRequest *string
}

func toAuditRow(e domain.AuditEntry) auditRow {
	a := auditRow{
		message:    truncateChars(e.Message, maxMessageChars),
		clientIP:   truncateChars(e.Client.IP, maxShortFieldChars),
		userAgent:  truncateChars(e.Client.UserAgent, maxUserAgentChars),
		requestID:  truncateChars(e.Client.RequestID, maxShortFieldChars),
		rawRequest: truncateRaw(e.RawRequest, maxRawRequestBytes),
	}
	if e.VendorID != nil {
		v := string(*e.VendorID)
		a.vendorID = &v
	}
	return a
}

func truncateChars(s string, max int) string {
	s = validText(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// truncateRaw cuts raw to at most max bytes without splitting a character.
func truncateRaw(raw *string, max int) *string {
	if raw == nil {
		return nil
	}
	s := *raw
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	s = validText(s)
	return &s
}

// validText drops invalid UTF-8 and NUL bytes, which Postgres text rejects.
func validText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}

package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const HeaderKey = "Idempotency-Key"

// Middleware replays the stored response for a repeated POST carrying the
// same Idempotency-Key from the same bearer on the same path. Requests
// without a bearer identify their vendor in the body and pass through
// uncached. 5xx responses are not stored so the caller can retry.
type Middleware struct {
	Store  Store
	Logger *zap.Logger
	Next   http.Handler
}

func (m Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Store == nil || m.Next == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(HeaderKey))
	bearer := bearerToken(r.Header.Get("Authorization"))
	if r.Method != http.MethodPost || idemKey == "" || bearer == "" {
		m.Next.ServeHTTP(w, r)
		return
	}

	key := scopedKey(bearer, r.URL.Path, idemKey)

	// Cache hit
	rec, ok, err := m.Store.Get(r.Context(), key)
	if err != nil {
		m.logWarn("idempotency lookup failed", err)
	}
	if ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	// Cache miss: capture response
	cw := newCaptureWriter(w)
	m.Next.ServeHTTP(cw, r)

	if cw.statusCode() >= http.StatusInternalServerError {
		return
	}

	err = m.Store.Set(r.Context(), key, Record{
		StatusCode: cw.statusCode(),
		Body:       cw.bodyBytes(),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		m.logWarn("idempotency store failed", err)
	}
}

func (m Middleware) logWarn(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Warn(msg, zap.Error(err))
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// scopedKey keeps keys from different callers and endpoints apart without
// holding the raw credential.
func scopedKey(bearer, path, idemKey string) string {
	sum := sha256.Sum256([]byte(bearer + "\x00" + path + "\x00" + idemKey))
	return "idem:" + hex.EncodeToString(sum[:])
}

type captureWriter struct {
	w      http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{w: w}
}

func (c *captureWriter) Header() http.Header {
	return c.w.Header()
}

func (c *captureWriter) WriteHeader(statusCode int) {
	c.status = statusCode
	c.w.WriteHeader(statusCode)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	// Mirror to actual response and also buffer
	c.buf.Write(b)
	return c.w.Write(b)
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *captureWriter) bodyBytes() []byte {
	return c.buf.Bytes()
}

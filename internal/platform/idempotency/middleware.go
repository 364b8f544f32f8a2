package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"

	maxKeyLength = 128
	// maxBodyBytes bounds the order payload held in memory for fingerprinting.
	maxBodyBytes = 64 << 10
)

// replayedHeaders are the response headers of an order creation worth repeating on replay.
var replayedHeaders = []string{"Content-Type", "Location"}

// Logger abstracts the logging dependency used inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

// guard holds the settings for one Middleware instance.
type guard struct {
	store  Store
	header string
	ttl    time.Duration
	clock  func() time.Time
	logger Logger
}

// Option customises the middleware.
type Option func(*guard)

// WithHeader overrides the request header carrying the key.
func WithHeader(name string) Option {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL configures how long completed order responses are replayable.
func WithTTL(ttl time.Duration) Option {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithLogger injects a logger for store failures.
func WithLogger(logger Logger) Option {
	return func(g *guard) {
		g.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware guards order creation. A POST without a key is rejected, a repeated POST with the same
// key and body gets the stored response, a concurrent duplicate gets 409 and a key reused with a
// different body gets 422. Keys are scoped to the authenticated user, so it must run after the auth
// middleware. Other methods pass through untouched.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:  store,
		header: defaultHeaderName,
		ttl:    DefaultTTL,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next)
		})
	}
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()

	key := strings.TrimSpace(r.Header.Get(g.header))
	switch {
	case key == "":
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+g.header+" header", http.StatusBadRequest))
		return
	case len(key) > maxKeyLength:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", g.header+" is too long", http.StatusBadRequest))
		return
	}

	body, err := bufferBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("request_too_large", "order payload too large", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	uid := requesterUID(ctx)
	scoped := scopedKey(key, uid)
	fingerprint := orderFingerprint(r.URL.Path, body)

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.clock().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key already used for a different order", http.StatusUnprocessableEntity))
		return
	case err != nil:
		g.logf("idempotency: reserve key %s for %s: %v", key, uid, err)
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusInternalServerError))
		return
	}

	switch reservation.State {
	case ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case ReservationStatePending:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "this order is already being placed", http.StatusConflict))
		return
	}

	captured := &capture{header: make(http.Header)}
	next.ServeHTTP(captured, r)
	g.finish(ctx, w, captured, scoped, fingerprint)
}

// finish stores the captured response and forwards it. Server failures are forgotten so the client
// may resubmit the same checkout.
func (g *guard) finish(ctx context.Context, w http.ResponseWriter, captured *capture, scoped, fingerprint string) {
	status := captured.statusCode()
	if status >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, scoped, fingerprint); err != nil {
			g.logf("idempotency: release %s after status %d: %v", scoped, status, err)
		}
		captured.flush(w)
		return
	}

	resp := Response{Status: status, Headers: captured.replayable(), Body: captured.body.Bytes()}
	if err := g.store.SaveResponse(ctx, scoped, fingerprint, resp, g.clock().UTC(), g.ttl); err != nil {
		g.logf("idempotency: save response for %s: %v", scoped, err)
		if releaseErr := g.store.Release(ctx, scoped, fingerprint); releaseErr != nil {
			g.logf("idempotency: release %s after save failure: %v", scoped, releaseErr)
		}
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to persist idempotency state", http.StatusInternalServerError))
		return
	}
	captured.flush(w)
}

func (g *guard) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

func bufferBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requesterUID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		return strings.TrimSpace(identity.UID)
	}
	return "anonymous"
}

func scopedKey(key, uid string) string {
	return uid + "|" + key
}

// orderFingerprint identifies the order attempt. The user is already part of the scoped key.
func orderFingerprint(path string, body []byte) string {
	return sha256Hex(append([]byte(path+"|"), bytes.TrimSpace(body)...))
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range headersFromRecord(record.ResponseHeaders) {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// capture buffers the handler response until it has been stored.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *capture) Write(data []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(data)
}

func (c *capture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *capture) replayable() http.Header {
	out := make(http.Header, len(replayedHeaders))
	for _, name := range replayedHeaders {
		if values := c.header.Values(name); len(values) > 0 {
			out[name] = append([]string(nil), values...)
		}
	}
	return out
}

func (c *capture) flush(w http.ResponseWriter) {
	for name, values := range c.header {
		w.Header()[name] = values
	}
	w.WriteHeader(c.statusCode())
	_, _ = w.Write(c.body.Bytes())
}

// Package secrets resolves secret:// references found in configuration against Google Secret
// Manager, with a local key=value file for development machines without credentials.
package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	metricNamespace     = "github.com/hanko-field/storefront/internal/platform/secrets"
	defaultFallbackFile = ".secrets.local"
	defaultCacheTTL     = 10 * time.Minute
)

// ErrSecretNotFound is returned when neither Secret Manager nor the fallback file knows the reference.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver fetches secret payloads and caches them for a bounded period.
type Resolver struct {
	client       accessClient
	ownsClient   bool
	clientOpts   []option.ClientOption
	project      string
	fallbackPath string
	cacheTTL     time.Duration
	now          func() time.Time
	logger       *zap.Logger

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter

	mu    sync.Mutex
	cache map[string]cachedSecret

	fallbackOnce sync.Once
	fallback     map[string]string
	fallbackErr  error
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// Option customises the resolver.
type Option func(*Resolver)

// WithProject sets the Google Cloud project used when a reference carries no project query parameter.
func WithProject(project string) Option {
	return func(r *Resolver) {
		r.project = strings.TrimSpace(project)
	}
}

// WithFallbackFile overrides the local fallback file path. An empty path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(r *Resolver) {
		r.fallbackPath = strings.TrimSpace(path)
	}
}

// WithCacheTTL bounds how long resolved values are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMeter records latency and cache hits on the supplied meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(r *Resolver) {
		if meter != nil {
			r.initInstruments(meter)
		}
	}
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(r *Resolver) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

func withClient(client accessClient) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

func withClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a Resolver. The Secret Manager client is created lazily on first remote lookup.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fallbackPath: defaultFallbackFile,
		cacheTTL:     defaultCacheTTL,
		now:          time.Now,
		logger:       zap.NewNop(),
		cache:        make(map[string]cachedSecret),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.latency == nil {
		r.initInstruments(otel.Meter(metricNamespace))
	}
	return r
}

func (r *Resolver) initInstruments(meter metric.Meter) {
	latency, err := meter.Float64Histogram(
		"storefront.secrets.fetch.latency",
		metric.WithDescription("Latency of Secret Manager lookups"),
		metric.WithUnit("ms"),
	)
	if err == nil {
		r.latency = latency
	}
	hits, err := meter.Int64Counter(
		"storefront.secrets.cache.hits",
		metric.WithDescription("Secret lookups served from cache"),
	)
	if err == nil {
		r.cacheHits = hits
	}
}

// ResolveSecret returns the payload behind ref. References look like
// secret://auth/jwt?version=3&project=my-project; slashes in the path become dashes in the secret id.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	if value, ok := r.cached(parsed.canonical); ok {
		if r.cacheHits != nil {
			r.cacheHits.Add(ctx, 1)
		}
		return value, nil
	}

	value, err := r.fetchRemote(ctx, parsed)
	if err != nil {
		if !isFallbackError(err) {
			return "", err
		}
		local, ok, fbErr := r.lookupFallback(parsed)
		if fbErr != nil {
			return "", fbErr
		}
		if !ok {
			return "", fmt.Errorf("%w: %s: %v", ErrSecretNotFound, parsed.masked(), err)
		}
		r.logger.Warn("secret resolved from fallback file",
			zap.String("ref", parsed.masked()),
			zap.String("reason", status.Code(err).String()),
		)
		value = local
	}

	r.mu.Lock()
	r.cache[parsed.canonical] = cachedSecret{value: value, expiresAt: r.now().Add(r.cacheTTL)}
	r.mu.Unlock()
	return value, nil
}

// Invalidate drops a cached value so the next lookup reaches Secret Manager again.
func (r *Resolver) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	r.mu.Lock()
	delete(r.cache, parsed.canonical)
	r.mu.Unlock()
}

// Close releases the Secret Manager client if the resolver created it.
func (r *Resolver) Close() error {
	r.mu.Lock()
	client := r.client
	owns := r.ownsClient
	r.client = nil
	r.mu.Unlock()
	if client != nil && owns {
		return client.Close()
	}
	return nil
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok {
		return "", false
	}
	if r.now().After(entry.expiresAt) {
		delete(r.cache, key)
		return "", false
	}
	return entry.value, true
}

func (r *Resolver) fetchRemote(ctx context.Context, ref reference) (string, error) {
	project := ref.project
	if project == "" {
		project = r.project
	}
	if project == "" {
		// Without a project only the fallback file can answer.
		return "", status.Error(codes.FailedPrecondition, "secrets: project not configured")
	}

	client, err := r.ensureClient(ctx)
	if err != nil {
		return "", status.Error(codes.Unavailable, err.Error())
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.secretID, ref.version)
	start := r.now()
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name},
		gax.WithRetry(func() gax.Retryer {
			return gax.OnCodes([]codes.Code{codes.Unavailable, codes.ResourceExhausted}, gax.Backoff{
				Initial:    100 * time.Millisecond,
				Max:        2 * time.Second,
				Multiplier: 2,
			})
		}),
	)
	if r.latency != nil {
		r.latency.Record(ctx, float64(r.now().Sub(start).Milliseconds()),
			metric.WithAttributes(attribute.String("code", status.Code(err).String())))
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref.masked())
		}
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("%w: %s has no payload", ErrSecretNotFound, ref.masked())
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func (r *Resolver) ensureClient(ctx context.Context) (accessClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	client, err := secretmanager.NewClient(ctx, r.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
	}
	r.client = client
	r.ownsClient = true
	return client, nil
}

func (r *Resolver) lookupFallback(ref reference) (string, bool, error) {
	r.fallbackOnce.Do(func() {
		r.fallback = map[string]string{}
		if r.fallbackPath == "" {
			return
		}
		file, err := os.Open(r.fallbackPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.fallbackErr = fmt.Errorf("secrets: open fallback file %s: %w", r.fallbackPath, err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			parsed, err := parseReference(strings.TrimSpace(key))
			if err != nil {
				continue
			}
			r.fallback[parsed.canonical] = strings.TrimSpace(value)
		}
		if err := scanner.Err(); err != nil {
			r.fallbackErr = fmt.Errorf("secrets: read fallback file %s: %w", r.fallbackPath, err)
		}
	})
	if r.fallbackErr != nil {
		return "", false, r.fallbackErr
	}
	value, ok := r.fallback[ref.canonical]
	return value, ok, nil
}

type reference struct {
	canonical string
	secretID  string
	version   string
	project   string
}

func (r reference) masked() string {
	sum := sha256.Sum256([]byte(r.canonical))
	return hex.EncodeToString(sum[:6])
}

func parseReference(ref string) (reference, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference: %w", err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	path := strings.Trim(u.Host+u.Path, "/")
	if path == "" {
		return reference{}, errors.New("secrets: missing secret name")
	}
	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = "latest"
	}
	return reference{
		canonical: "secret://" + path + "#" + version,
		secretID:  strings.ReplaceAll(path, "/", "-"),
		version:   version,
		project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.FailedPrecondition:
		return true
	default:
		return false
	}
}

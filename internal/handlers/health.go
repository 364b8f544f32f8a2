package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanko-field/storefront/internal/platform/httpx"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
	healthStatusError    = "error"

	defaultCheckTimeout = 1500 * time.Millisecond
)

// BuildInfo describes the running binary for the health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// DependencyCheck probes a backend during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// HealthHandlers serves /healthz (liveness) and /readyz (dependency readiness).
type HealthHandlers struct {
	build          BuildInfo
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the version metadata reported by both probes.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthChecks registers dependency probes evaluated by /readyz.
func WithHealthChecks(checks ...DependencyCheck) HealthOption {
	return func(h *HealthHandlers) {
		for _, check := range checks {
			if strings.TrimSpace(check.Name) == "" || check.Check == nil {
				continue
			}
			h.checks = append(h.checks, check)
		}
	}
}

// WithHealthCheckTimeout overrides the timeout applied to checks that set none.
func WithHealthCheckTimeout(timeout time.Duration) HealthOption {
	return func(h *HealthHandlers) {
		if timeout > 0 {
			h.defaultTimeout = timeout
		}
	}
}

// WithHealthClock injects a clock, mostly for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewHealthHandlers builds the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		defaultTimeout: defaultCheckTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version,omitempty"`
	CommitSHA   string                 `json:"commitSha,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	Uptime      string                 `json:"uptime"`
	Timestamp   string                 `json:"timestamp"`
	Checks      map[string]checkResult `json:"checks,omitempty"`
	Details     []string               `json:"details,omitempty"`
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Healthz reports that the process is up.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.baseResponse(healthStatusOK))
}

// Readyz runs every dependency check concurrently and answers 503 unless all pass.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	results := h.collect(r.Context())

	status := healthStatusOK
	var details []string
	for name, result := range results {
		switch result.Status {
		case healthStatusOK:
			continue
		case healthStatusError:
			status = healthStatusError
		default:
			if status == healthStatusOK {
				status = healthStatusDegraded
			}
		}
		details = append(details, name+": "+result.Error)
	}
	sort.Strings(details)

	resp := h.baseResponse(status)
	resp.Checks = results
	resp.Details = details

	code := http.StatusOK
	if status != healthStatusOK {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, resp)
}

func (h *HealthHandlers) baseResponse(status string) healthResponse {
	now := h.now()
	return healthResponse{
		Status:      status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}

func (h *HealthHandlers) collect(ctx context.Context) map[string]checkResult {
	results := make(map[string]checkResult, len(h.checks))
	var mu sync.Mutex

	// Checks never return errors to the group so one failure does not cancel the others.
	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		check := check
		g.Go(func() error {
			timeout := check.Timeout
			if timeout <= 0 {
				timeout = h.defaultTimeout
			}
			checkCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			start := h.now()
			err := check.Check(checkCtx)
			result := checkResult{Status: healthStatusOK, LatencyMS: h.now().Sub(start).Milliseconds()}
			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
				result.Status = healthStatusError
				result.Error = "timeout"
			default:
				result.Status = healthStatusDegraded
				result.Error = err.Error()
			}

			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

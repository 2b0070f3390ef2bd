// Package lifecycle exposes the liveness and readiness probes and coordinates shutdown.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/storefront-bot/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ErrShuttingDown fails readiness once shutdown has begun.
var ErrShuttingDown = errors.New("shutting down")

// Probes backs /healthz and /readyz.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates Probes; checker may be nil, in which case readiness only tracks shutdown.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness fails when any dependency check fails or shutdown has started.
func (p *Probes) Readiness(ctx context.Context) error {
	_, err := p.ready(ctx)
	return err
}

// Drain makes readiness fail so load balancers stop routing before hooks run.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

func (p *Probes) ready(ctx context.Context) (health.Report, error) {
	if p.draining.Load() {
		return nil, ErrShuttingDown
	}
	if p.checker == nil {
		return health.Report{}, nil
	}

	report := p.checker.Check(ctx)
	if !report.Healthy() {
		return report, errors.New("unhealthy: " + strings.Join(report.Failed(), ", "))
	}
	return report, nil
}

type probeResponse struct {
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Components health.Report `json:"components,omitempty"`
}

// LivenessHandler serves /healthz.
func (p *Probes) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.write(w, nil, p.Liveness(r.Context()))
	})
}

// ReadinessHandler serves /readyz with per-component statuses.
func (p *Probes) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report, err := p.ready(r.Context())
		if err != nil {
			p.log.Warn("readiness probe failed", slog.Any("error", err))
		}
		p.write(w, report, err)
	})
}

func (p *Probes) write(w http.ResponseWriter, report health.Report, err error) {
	resp := probeResponse{Status: "ok", Components: report}
	code := http.StatusOK
	if err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		p.log.Debug("failed to write probe response", slog.Any("error", encErr))
	}
}

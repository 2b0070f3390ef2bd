// Package broadcast delivers one message to many users at a bounded rate.
package broadcast

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/Proton-105/storefront-bot/internal/transport"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

const (
	defaultRate          = 25
	defaultProgressEvery = 10
)

// Summary is the outcome of a broadcast. Succeeded+Failed+Skipped always equals Total.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// Processed is the number of attempted recipients.
func (s Summary) Processed() int {
	return s.Succeeded + s.Failed
}

// DeliveryRate is the successful share of Total in percent, rounded to two decimals.
func (s Summary) DeliveryRate() float64 {
	if s.Total == 0 {
		return 0
	}
	pct := float64(s.Succeeded) / float64(s.Total) * 100
	return math.Round(pct*100) / 100
}

// ProgressFunc observes a running broadcast.
type ProgressFunc func(ctx context.Context, snapshot Summary)

// Config tunes pacing and progress reporting.
type Config struct {
	RatePerSecond float64
	Burst         int
	ProgressEvery int
}

type Dispatcher struct {
	transport     transport.Transport
	limiter       *rate.Limiter
	progressEvery int
	log           *slog.Logger
}

func NewDispatcher(tr transport.Transport, cfg Config, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}

	return &Dispatcher{
		transport:     tr,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		progressEvery: cfg.ProgressEvery,
		log:           log,
	}
}

// Dispatch sends msg to each recipient in order. A failed send is counted and the loop
// continues. Cancelling ctx stops the loop and reports the rest as skipped.
// progress, when set, runs every ProgressEvery attempts and after the last one.
func (d *Dispatcher) Dispatch(ctx context.Context, msg transport.Message, recipients []int64, progress ProgressFunc) Summary {
	summary := Summary{Total: len(recipients)}
	if summary.Total == 0 {
		return summary
	}

	started := time.Now()
	log := d.log.With(slog.Int("total", summary.Total))
	log.Info("broadcast started")

	for i, userID := range recipients {
		if err := d.limiter.Wait(ctx); err != nil {
			summary.Skipped = summary.Total - i
			break
		}

		if _, err := d.transport.SendText(ctx, userID, msg); err != nil {
			if ctx.Err() != nil {
				summary.Skipped = summary.Total - i
				break
			}
			summary.Failed++
			log.Debug("broadcast delivery failed", slog.Int64("user_id", userID), slog.Any("error", err))
		} else {
			summary.Succeeded++
		}

		processed := summary.Processed()
		if progress != nil && (processed%d.progressEvery == 0 || processed == summary.Total) {
			progress(ctx, summary)
		}
	}

	metrics.RecordBroadcastDelivery("succeeded", summary.Succeeded)
	metrics.RecordBroadcastDelivery("failed", summary.Failed)
	metrics.RecordBroadcastDelivery("skipped", summary.Skipped)

	log.Info("broadcast finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Float64("delivery_rate", summary.DeliveryRate()),
		slog.Duration("elapsed", time.Since(started)),
	)

	return summary
}

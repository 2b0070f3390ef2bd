package metrics

import (
	"context"
	"time"

	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const collectInterval = 10 * time.Second

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	captchaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captcha_challenges_total",
			Help: "Captcha challenges by outcome (issued, passed, failed)",
		},
		[]string{"outcome"},
	)
	paymentsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_submitted_total",
			Help: "Payment requests submitted for moderation by method",
		},
		[]string{"method"},
	)
	paymentsDecidedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_decided_total",
			Help: "Moderation decisions by outcome",
		},
		[]string{"outcome"},
	)
	broadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast deliveries by result",
		},
		[]string{"result"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications by kind and result",
		},
		[]string{"kind", "result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of live conversation sessions",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of live sessions per state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	command = labelOrUnknown(command)
	botCommandsTotal.WithLabelValues(command, labelOrUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(labelOrUnknown(from), labelOrUnknown(to)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	errorsTotal.WithLabelValues(labelOrUnknown(code), labelOrUnknown(severity)).Inc()
}

func RecordCaptcha(outcome string) {
	captchaTotal.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

func RecordPaymentSubmitted(method string) {
	paymentsSubmittedTotal.WithLabelValues(labelOrUnknown(method)).Inc()
}

func RecordPaymentDecision(outcome string) {
	paymentsDecidedTotal.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

// RecordBroadcastDelivery counts a single broadcast attempt; result is "sent", "failed" or "skipped".
func RecordBroadcastDelivery(result string, n int) {
	if n <= 0 {
		return
	}
	broadcastDeliveriesTotal.WithLabelValues(labelOrUnknown(result)).Add(float64(n))
}

func RecordNotification(kind, result string) {
	notificationsTotal.WithLabelValues(labelOrUnknown(kind), labelOrUnknown(result)).Inc()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// SessionLister is the read side of the state machine needed by the collector.
type SessionLister interface {
	Sessions(ctx context.Context) ([]*state.Session, error)
}

// StateCollector periodically gathers FSM session counts and emits gauge metrics.
type StateCollector struct {
	sessions SessionLister
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided FSM.
func NewStateCollector(sessions SessionLister) *StateCollector {
	return &StateCollector{sessions: sessions, interval: collectInterval}
}

// Run polls the FSM until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.sessions == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	sessions, err := c.sessions.Sessions(ctx)
	if err != nil {
		return err
	}

	activeSessions.Set(float64(len(sessions)))

	counts := make(map[string]int, len(state.Known))
	for _, s := range sessions {
		label := "unknown"
		if s != nil && s.State != "" {
			label = string(s.State)
		}
		counts[label]++
	}

	sessionsByState.Reset()
	for _, known := range state.Known {
		label := string(known)
		sessionsByState.WithLabelValues(label).Set(float64(counts[label]))
		delete(counts, label)
	}
	for label, count := range counts {
		sessionsByState.WithLabelValues(label).Set(float64(count))
	}

	return nil
}

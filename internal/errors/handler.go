package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/storefront-bot/pkg/logger"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

const (
	defaultUserMessage = "Произошла ошибка. Попробуйте позже"
	codeUnknown        = "unknown"
)

// Handler turns errors escaping an update handler into a chat reply, a log line,
// a metric and, for severe ones, a Sentry event.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle returns the text to show the user together with whether the operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	report := classify(err)

	attrs := []any{
		slog.String("code", report.code),
		slog.String("severity", string(report.severity)),
		slog.Bool("retryable", report.retryable),
		slog.Any("error", err),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	level := slog.LevelError
	if report.severity == SeverityLow {
		level = slog.LevelWarn
	}
	h.log.Log(ctx, level, "update handling failed", attrs...)
	metrics.RecordError(report.code, string(report.severity))

	if h.sentryEnabled && (report.severity == SeverityHigh || report.severity == SeverityCritical) {
		h.sendToSentry(err, report)
	}

	return report.userMessage, report.retryable
}

type errorReport struct {
	code        string
	severity    Severity
	retryable   bool
	userMessage string
}

// classify reads the AppError in err's chain; anything else is an unknown, high-severity failure.
func classify(err error) errorReport {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		return errorReport{code: codeUnknown, severity: SeverityHigh, userMessage: defaultUserMessage}
	}

	report := errorReport{
		code:        appErr.Code,
		severity:    appErr.Severity,
		retryable:   appErr.Retryable,
		userMessage: appErr.UserMessage,
	}
	if report.userMessage == "" {
		report.userMessage = defaultUserMessage
	}
	return report
}

func (h *Handler) sendToSentry(err error, report errorReport) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", report.code)
		scope.SetTag("severity", string(report.severity))
		sentry.CaptureException(err)
	})
}

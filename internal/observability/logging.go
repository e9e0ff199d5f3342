// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key for a per-operation correlation id.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries an id.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if ExtractCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, GenerateCorrelationID())
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// Transition describes one state change applied to a shipment and its messenger.
type Transition struct {
	Operation     string
	ShipmentID    uint
	MessengerID   uint
	ShipmentFrom  string
	ShipmentTo    string
	MessengerFrom string
	MessengerTo   string
	Trigger       string // "manual" or "sync"
}

// TransitionLogger writes an audit line for every applied or skipped transition.
type TransitionLogger struct {
	logger *slog.Logger
}

// NewTransitionLogger wraps logger; nil falls back to slog.Default().
func NewTransitionLogger(logger *slog.Logger) *TransitionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionLogger{logger: logger}
}

// Applied logs a committed transition.
func (l *TransitionLogger) Applied(ctx context.Context, t Transition) {
	l.logger.InfoContext(ctx, "transition applied", l.attrs(ctx, t)...)
}

// Noop logs a transition that found its target state already reached.
func (l *TransitionLogger) Noop(ctx context.Context, t Transition, reason string) {
	attrs := append(l.attrs(ctx, t), slog.String("reason", reason))
	l.logger.InfoContext(ctx, "transition skipped", attrs...)
}

// Failed logs a transition that rolled back.
func (l *TransitionLogger) Failed(ctx context.Context, t Transition, err error) {
	attrs := append(l.attrs(ctx, t), slog.String("error", err.Error()))
	l.logger.WarnContext(ctx, "transition failed", attrs...)
}

func (l *TransitionLogger) attrs(ctx context.Context, t Transition) []any {
	attrs := []any{
		slog.String("operation", t.Operation),
		slog.Uint64("shipment_id", uint64(t.ShipmentID)),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	if t.MessengerID != 0 {
		attrs = append(attrs, slog.Uint64("messenger_id", uint64(t.MessengerID)))
	}
	if t.ShipmentTo != "" {
		attrs = append(attrs, slog.String("shipment_from", t.ShipmentFrom), slog.String("shipment_to", t.ShipmentTo))
	}
	if t.MessengerTo != "" {
		attrs = append(attrs, slog.String("messenger_from", t.MessengerFrom), slog.String("messenger_to", t.MessengerTo))
	}
	if t.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", t.Trigger))
	}
	return attrs
}

package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger scoped to one subsystem.
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context for trace propagation.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogProbeOutcome records a finished (probe, region) task.
func (l *Logger) LogProbeOutcome(ctx context.Context, probe, region, status string, emitted int, err error) {
	event := l.WithContext(ctx).Info()
	if err != nil {
		event = l.WithContext(ctx).Warn().Err(err)
	}
	event.
		Str("probe", probe).
		Str("region", region).
		Str("status", status).
		Int("items_emitted", emitted).
		Msg("probe finished")
}

// LogCacheEvent records a cache hit, miss, write or invalidation.
func (l *Logger) LogCacheEvent(ctx context.Context, op, accountRef string) {
	l.WithContext(ctx).Debug().
		Str("operation", op).
		Str("account_ref", accountRef).
		Msg("cache event")
}

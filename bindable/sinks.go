package bindable

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/bindable/internal/sink"
)

// Sink is the output interface for dombind events.
type Sink = sink.Sink

// SQLiteSink is the SQLite event log. It also serves scan history.
type SQLiteSink = sink.SQLite

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink. Either handler may be nil.
func NewCallbackSink(
	onBound func(ctx context.Context, ev event.Bound) error,
	onScan func(ctx context.Context, ev event.Scan) error,
) Sink {
	return sink.NewCallback(onBound, onScan)
}

// OpenSQLiteSink opens (or creates) an SQLite event log at path. A zero
// busyTimeout keeps the 10s default.
func OpenSQLiteSink(path string, busyTimeout time.Duration) (*SQLiteSink, error) {
	return sink.OpenSQLite(path, busyTimeout)
}

// NewRouter fans events out to every sink.
func NewRouter(logger *slog.Logger, sinks ...Sink) Sink {
	return sink.NewRouter(logger, sinks...)
}

// SinkScans returns a scan hook that emits every report to s as an
// event.Scan. Send failures are logged.
func SinkScans(s Sink, logger *slog.Logger) func(context.Context, Report) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, rep Report) {
		if err := s.SendScan(ctx, FromReport(rep)); err != nil {
			logger.Warn("bindable: scan event not delivered", "binder", rep.Binder, "error", err)
		}
	}
}

package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/dombind/bindable/event"
)

// Router fans events out to every sink. A failing sink does not block the
// others; failures are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) SendBound(ctx context.Context, ev event.Bound) error {
	return r.each("bound", func(s Sink) error { return s.SendBound(ctx, ev) })
}

func (r *Router) SendScan(ctx context.Context, ev event.Scan) error {
	return r.each("scan", func(s Sink) error { return s.SendScan(ctx, ev) })
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) each(kind string, send func(Sink) error) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := send(s); err != nil {
			r.logger.Warn("sink: send failed", "event", kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

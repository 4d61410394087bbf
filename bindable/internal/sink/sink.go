// Package sink defines output backends for dombind events.
package sink

import (
	"context"

	"github.com/hazyhaar/dombind/bindable/event"
)

// Sink delivers events to a backend (stdout, webhook, SQLite, in-process
// callback).
type Sink interface {
	SendBound(ctx context.Context, ev event.Bound) error
	SendScan(ctx context.Context, ev event.Scan) error
	Close() error
}

package sink

import (
	"context"

	"github.com/hazyhaar/dombind/bindable/event"
)

// BoundFunc is called for each bound event.
type BoundFunc func(ctx context.Context, ev event.Bound) error

// ScanFunc is called for each scan event.
type ScanFunc func(ctx context.Context, ev event.Scan) error

// Callback delivers events as in-process function calls.
type Callback struct {
	onBound BoundFunc
	onScan  ScanFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onBound BoundFunc, onScan ScanFunc) *Callback {
	return &Callback{onBound: onBound, onScan: onScan}
}

func (c *Callback) SendBound(ctx context.Context, ev event.Bound) error {
	if c.onBound != nil {
		return c.onBound(ctx, ev)
	}
	return nil
}

func (c *Callback) SendScan(ctx context.Context, ev event.Scan) error {
	if c.onScan != nil {
		return c.onScan(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }

// Package bindable instantiates one controller per element matching a CSS
// selector, and keeps doing so as matching elements appear in the document.
//
// A Binder marks every element it binds with data-bound="true" so that
// repeated scans are idempotent. Elements carrying data-no-bind are never
// selected. The host tree is abstracted behind Document: htmldoc provides an
// in-process HTML tree, rodpage a live Chrome page.
package bindable

import (
	"context"
	"errors"
	"log/slog"
)

// Default marker attributes.
const (
	DefaultBoundAttr  = "data-bound"
	DefaultNoBindAttr = "data-no-bind"

	// BoundValue is the only value of the bound marker that means "bound".
	BoundValue = "true"
)

var (
	ErrNoSelector  = errors.New("bindable: selector is required")
	ErrNoDocument  = errors.New("bindable: document is required")
	ErrNoFactory   = errors.New("bindable: factory is required")
	ErrMarkFailed  = errors.New("bindable: set bound marker")
	ErrPanic       = errors.New("bindable: factory panicked")
	ErrUnknownName = errors.New("bindable: unknown binder")
)

// Element is one element of a host document.
type Element interface {
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	// String describes the element for logs, e.g. "div#main.widget".
	String() string
}

// Document is the host tree a Binder scans and observes.
type Document interface {
	// QueryAll returns the elements matching selector in document order.
	// The returned slice is a snapshot: later tree mutations do not alter it.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Observe calls onChange after child-list mutations anywhere in root's
	// subtree. A nil root observes the whole document. Hosts may deliver
	// on their own goroutine or synchronously from inside the mutating
	// call; Binder coalesces re-entrant scans either way.
	Observe(ctx context.Context, root Element, onChange func()) (Subscription, error)
}

// Subscription is an active observation.
type Subscription interface {
	Close() error
}

// Factory builds the controller for one element. Returning an error (or
// panicking) leaves the element unbound so a later scan retries it.
type Factory[T any] func(ctx context.Context, el Element) (T, error)

// Config is the immutable per-binder configuration.
type Config struct {
	// Name identifies the binder in logs and events. Defaults to the
	// controller's Go type name.
	Name string

	// Selector chooses the elements to bind. Required.
	Selector string

	// DisableLogging suppresses the per-element error log and the
	// per-scan summary log.
	DisableLogging bool

	// BoundAttr is the bound marker. Default: data-bound.
	BoundAttr string

	// NoBindAttr is the opt-out marker. Default: data-no-bind.
	NoBindAttr string

	// MaxPasses caps the passes a single BindAll runs when rescans are
	// requested while it is in flight. Default: 16.
	MaxPasses int
}

func (c *Config) defaults() {
	if c.BoundAttr == "" {
		c.BoundAttr = DefaultBoundAttr
	}
	if c.NoBindAttr == "" {
		c.NoBindAttr = DefaultNoBindAttr
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 16
	}
}

// Option configures a Binder.
type Option func(*options)

type options struct {
	logger *slog.Logger
	hook   func(context.Context, Report)
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScanHook registers fn to run after every completed BindAll.
// Coalesced calls do not invoke it.
func WithScanHook(fn func(context.Context, Report)) Option {
	return func(o *options) { o.hook = fn }
}

// Scanner is the type-erased view of a Binder.
type Scanner interface {
	Name() string
	Selector() string
	BindAll(ctx context.Context) (Report, error)
	Scan(ctx context.Context) (Report, error)
	Observe(ctx context.Context, root Element) (Subscription, error)
}

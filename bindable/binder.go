package bindable

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of one construction attempt.
type Result struct {
	Element Element
	Err     error
}

// Report summarises a BindAll call.
type Report struct {
	Binder string
	// Passes is the number of full scans this call ran. More than one
	// means rescans were requested while it was in flight.
	Passes int
	// Matched counts elements returned by the query, over all passes.
	Matched int
	Bound   int
	Failed  int
	// Skipped counts matched elements that were marked bound or
	// excluded by the time their turn came.
	Skipped int
	Results []Result
	// Coalesced is set when the call found a scan already running and
	// folded itself into it instead of scanning.
	Coalesced bool
	Duration  time.Duration
}

// Failures returns the failed results.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Binder binds controllers of type T to the elements of a Document.
type Binder[T any] struct {
	cfg     Config
	doc     Document
	factory Factory[T]
	logger  *slog.Logger
	hook    func(context.Context, Report)
	query   string

	mu       sync.Mutex
	scanning bool
	rerun    bool
	idle     chan struct{} // closed when the running BindAll returns
	last     Report
	lastErr  error
}

var _ Scanner = (*Binder[struct{}])(nil)

// New creates a Binder. It fails when the document, factory or selector is
// missing.
func New[T any](doc Document, cfg Config, factory Factory[T], opts ...Option) (*Binder[T], error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	if factory == nil {
		return nil, ErrNoFactory
	}
	if strings.TrimSpace(cfg.Selector) == "" {
		return nil, ErrNoSelector
	}
	cfg.defaults()
	if cfg.Name == "" {
		cfg.Name = typeName[T]()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Binder[T]{
		cfg:     cfg,
		doc:     doc,
		factory: factory,
		logger:  o.logger,
		hook:    o.hook,
		query:   ExcludeMarked(cfg.Selector, cfg.BoundAttr, cfg.NoBindAttr),
	}, nil
}

// Name returns the binder name.
func (b *Binder[T]) Name() string { return b.cfg.Name }

// Selector returns the configured selector, without marker filters.
func (b *Binder[T]) Selector() string { return b.cfg.Selector }

// Query returns the effective query run by each pass.
func (b *Binder[T]) Query() string { return b.query }

// BindAll runs a scan-and-bind pass over the document. Every matching
// element that is neither bound nor excluded gets exactly one construction
// attempt; successes are marked bound, failures are logged and left
// eligible for the next scan.
//
// If the binder is already scanning, the call returns immediately with
// Report.Coalesced set and the running call performs one more pass once
// its current pass ends; Scan waits for that pass instead. The returned
// error is non-nil only when the host query fails or ctx is done.
func (b *Binder[T]) BindAll(ctx context.Context) (Report, error) {
	b.mu.Lock()
	if b.scanning {
		b.rerun = true
		b.mu.Unlock()
		return Report{Binder: b.cfg.Name, Coalesced: true}, nil
	}
	b.scanning = true
	idle := make(chan struct{})
	b.idle = idle
	b.mu.Unlock()
	defer close(idle)

	start := time.Now()
	rep := Report{Binder: b.cfg.Name}
	var err error
	for {
		err = b.pass(ctx, &rep)

		b.mu.Lock()
		again := b.rerun && err == nil
		b.rerun = false
		capped := again && rep.Passes >= b.cfg.MaxPasses
		if capped {
			again = false
		}
		if !again {
			rep.Duration = time.Since(start)
			b.scanning = false
			b.last, b.lastErr = rep, err
		}
		b.mu.Unlock()

		if capped && b.logging() {
			b.logger.Warn("bindable: rescan limit reached",
				"binder", b.cfg.Name, "passes", rep.Passes)
		}
		if !again {
			break
		}
	}

	if err == nil && b.hook != nil {
		b.hook(ctx, rep)
	}
	return rep, err
}

// Scan is BindAll for callers outside the binder's own factory and observe
// callbacks, such as the HTTP and MCP surfaces. When a scan is already
// running it requests one more pass, waits for that scan to return, and
// reports it with Coalesced set. Either way every element matching when
// Scan was called has been attempted, unless MaxPasses cut the rescans
// short. Calling Scan from the factory of the same binder deadlocks.
func (b *Binder[T]) Scan(ctx context.Context) (Report, error) {
	for {
		b.mu.Lock()
		if !b.scanning {
			b.mu.Unlock()
			rep, err := b.BindAll(ctx)
			if rep.Coalesced {
				// Another scan started in between; wait for it instead.
				continue
			}
			return rep, err
		}
		b.rerun = true
		idle := b.idle
		b.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return Report{Binder: b.cfg.Name, Coalesced: true}, ctx.Err()
		}
		b.mu.Lock()
		rep, err := b.last, b.lastErr
		b.mu.Unlock()
		rep.Coalesced = true
		return rep, err
	}
}

func (b *Binder[T]) pass(ctx context.Context, rep *Report) error {
	rep.Passes++

	els, err := b.doc.QueryAll(ctx, b.query)
	if err != nil {
		return fmt.Errorf("bindable: %s: query %q: %w", b.cfg.Name, b.query, err)
	}
	rep.Matched += len(els)

	before := rep.Bound
	for _, el := range els {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A constructor earlier in this pass may have marked or excluded it.
		if !b.eligible(el) {
			rep.Skipped++
			continue
		}

		res := b.bindOne(ctx, el)
		rep.Results = append(rep.Results, res)
		if res.Err != nil {
			rep.Failed++
			if b.logging() {
				b.logger.Error("bindable: failed to bind element",
					"binder", b.cfg.Name, "element", el.String(), "error", res.Err)
			}
			continue
		}
		rep.Bound++
	}

	if b.logging() {
		b.logger.Info("bindable: bound elements", "binder", b.cfg.Name, "count", rep.Bound-before)
	}
	return nil
}

func (b *Binder[T]) bindOne(ctx context.Context, el Element) (res Result) {
	res.Element = el
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if _, err := b.factory(ctx, el); err != nil {
		res.Err = err
		return res
	}
	if err := el.SetAttr(b.cfg.BoundAttr, BoundValue); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrMarkFailed, err)
	}
	return res
}

func (b *Binder[T]) eligible(el Element) bool {
	if v, ok := el.Attr(b.cfg.BoundAttr); ok && v == BoundValue {
		return false
	}
	_, excluded := el.Attr(b.cfg.NoBindAttr)
	return !excluded
}

func (b *Binder[T]) logging() bool { return !b.cfg.DisableLogging }

// Observe rescans the document every time the host reports child-list
// mutations under root (nil: the whole document). Each notification runs a
// full BindAll; already bound elements are filtered out by the query.
// Closing the subscription or cancelling ctx stops the rescans.
func (b *Binder[T]) Observe(ctx context.Context, root Element) (Subscription, error) {
	sub, err := b.doc.Observe(ctx, root, func() {
		if _, err := b.BindAll(ctx); err != nil && ctx.Err() == nil && b.logging() {
			b.logger.Error("bindable: rescan failed", "binder", b.cfg.Name, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("bindable: %s: observe: %w", b.cfg.Name, err)
	}
	return sub, nil
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Bindable"
	}
	return t.Name()
}

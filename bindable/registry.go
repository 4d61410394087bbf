package bindable

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry holds the binders of an application by name. Scans run in
// registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	scanner map[string]Scanner
}

// NewRegistry creates a Registry with the given scanners.
func NewRegistry(scanners ...Scanner) (*Registry, error) {
	r := &Registry{scanner: make(map[string]Scanner)}
	for _, s := range scanners {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s. Names must be unique.
func (r *Registry) Register(s Scanner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.scanner[s.Name()]; dup {
		return fmt.Errorf("bindable: binder %q already registered", s.Name())
	}
	r.scanner[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// Get returns the named scanner.
func (r *Registry) Get(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scanner[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return s, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) scanners() []Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scanner, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.scanner[name])
	}
	return out
}

// BindAll runs BindAll on every binder. A failing binder does not stop the
// others; their errors are joined.
func (r *Registry) BindAll(ctx context.Context) ([]Report, error) {
	return r.each(ctx, Scanner.BindAll)
}

// Scan is BindAll through Scanner.Scan: binders already scanning are
// waited for instead of coalesced.
func (r *Registry) Scan(ctx context.Context) ([]Report, error) {
	return r.each(ctx, Scanner.Scan)
}

func (r *Registry) each(ctx context.Context, run func(Scanner, context.Context) (Report, error)) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, s := range r.scanners() {
		rep, err := run(s, ctx)
		if err != nil {
			errs = append(errs, err)
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// ObserveAll registers every binder on root. On failure the subscriptions
// already made are closed.
func (r *Registry) ObserveAll(ctx context.Context, root Element) (Subscription, error) {
	var subs multiSub
	for _, s := range r.scanners() {
		sub, err := s.Observe(ctx, root)
		if err != nil {
			subs.Close()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

type multiSub []Subscription

func (m multiSub) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package bindable

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/idgen"
	"github.com/hazyhaar/dombind/kit"
)

// BinderInfo describes a registered binder.
type BinderInfo struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// ScanHistory serves past scan events. *SQLiteSink implements it.
type ScanHistory interface {
	RecentScans(ctx context.Context, binder string, limit int) ([]event.Scan, error)
}

// ServiceOption configures the HTTP and MCP surfaces.
type ServiceOption func(*service)

// WithServiceLogger sets the logger. Default: slog.Default().
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory enables the scan history operation.
func WithHistory(h ScanHistory) ServiceOption {
	return func(s *service) { s.history = h }
}

type scanRequest struct {
	Binder string `json:"binder,omitempty"`
}

type historyRequest struct {
	Binder string `json:"binder"`
	Limit  int    `json:"limit,omitempty"`
}

// service holds the transport-neutral endpoints shared by HTTP and MCP.
type service struct {
	reg     *Registry
	history ScanHistory
	logger  *slog.Logger
}

func newService(reg *Registry, opts []ServiceOption) *service {
	s := &service{reg: reg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) endpoint(op string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.RequestID(idgen.New), kit.Logging(s.logger, op))(ep)
}

func (s *service) list(_ context.Context, _ any) (any, error) {
	names := s.reg.Names()
	out := make([]BinderInfo, 0, len(names))
	for _, name := range names {
		sc, err := s.reg.Get(name)
		if err != nil {
			continue
		}
		out = append(out, BinderInfo{Name: sc.Name(), Selector: sc.Selector()})
	}
	return out, nil
}

// scan runs one binder and returns its event.Scan, or every binder and
// returns []event.Scan when no binder is named. A binder already scanning
// is waited for, so the response covers every element present now.
func (s *service) scan(ctx context.Context, req any) (any, error) {
	r, _ := req.(*scanRequest)
	if r == nil || r.Binder == "" {
		reps, err := s.reg.Scan(ctx)
		out := make([]event.Scan, len(reps))
		for i, rep := range reps {
			out[i] = FromReport(rep)
		}
		return out, err
	}

	sc, err := s.reg.Get(r.Binder)
	if err != nil {
		return nil, err
	}
	rep, err := sc.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return FromReport(rep), nil
}

func (s *service) recentScans(ctx context.Context, req any) (any, error) {
	r := req.(*historyRequest)
	if _, err := s.reg.Get(r.Binder); err != nil {
		return nil, err
	}
	scans, err := s.history.RecentScans(ctx, r.Binder, r.Limit)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []event.Scan{}
	}
	return scans, nil
}

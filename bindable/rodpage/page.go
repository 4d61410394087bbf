// Package rodpage adapts a live Chrome page, driven by go-rod, to the
// bindable.Document interface. Mutations are reported by a MutationObserver
// injected into the page and relayed to Go through a Runtime binding.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/dombind/bindable"
	"github.com/hazyhaar/dombind/bindable/internal/browser"
	"github.com/hazyhaar/dombind/bindable/internal/notify"
)

// ErrForeignElement is returned when an element of another page is passed in.
var ErrForeignElement = errors.New("rodpage: element belongs to another page")

// BindingName is the Runtime binding the injected observers call.
const BindingName = "__dombind_binding"

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDebounce batches mutation notifications. Default: 100ms, 1000.
func WithDebounce(window time.Duration, maxBuffer int) Option {
	return func(p *Page) {
		p.debounce = notify.Config{Window: window, MaxBuffer: maxBuffer}
	}
}

// Page is a bindable.Document backed by a rod page.
type Page struct {
	page     *rod.Page
	logger   *slog.Logger
	debounce notify.Config

	mu        sync.Mutex
	subs      map[string]*subscription
	seq       int
	listening bool
	stop      context.CancelFunc
}

var _ bindable.Document = (*Page)(nil)

// New wraps an already navigated rod page.
func New(page *rod.Page, opts ...Option) *Page {
	p := &Page{
		page:     page,
		logger:   slog.Default(),
		debounce: notify.Config{Window: 100 * time.Millisecond, MaxBuffer: 1000},
		subs:     make(map[string]*subscription),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Rod returns the underlying rod page.
func (p *Page) Rod() *rod.Page { return p.page }

// URL returns the page's current URL.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// QueryAll returns the elements matching selector in document order.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]bindable.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("rodpage: query: %w", err)
	}
	out := make([]bindable.Element, len(els))
	for i, el := range els {
		out[i] = &Element{page: p, el: el}
	}
	return out, nil
}

// HTML returns the serialised document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("rodpage: html: %w", err)
	}
	return res.Value.Str(), nil
}

// Close disconnects every observer and stops the binding listener. The
// rod page itself stays open.
func (p *Page) Close() error {
	p.mu.Lock()
	subs := make([]*subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	p.mu.Lock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
		p.listening = false
	}
	p.mu.Unlock()
	return nil
}

// Tab is a page opened by a browser Manager. Close closes the tab too.
type Tab struct {
	*Page
}

// Open navigates a new stealth tab of mgr to url.
func Open(ctx context.Context, mgr *Manager, url string, opts ...Option) (*Tab, error) {
	rp, err := browser.OpenTab(ctx, mgr, url)
	if err != nil {
		return nil, err
	}
	return &Tab{Page: New(rp, opts...)}, nil
}

// Close stops observation and closes the tab.
func (t *Tab) Close() error {
	t.Page.Close()
	return t.page.Close()
}

// Manager owns the Chrome instance tabs are opened in.
type Manager = browser.Manager

// ManagerConfig configures a Manager.
type ManagerConfig = browser.Config

// NewManager creates a Manager. Call Start before Open.
func NewManager(cfg ManagerConfig) *Manager {
	return browser.NewManager(cfg)
}

// ensureListener registers the Runtime binding and starts the goroutine
// dispatching its calls. The caller holds p.mu.
func (p *Page) ensureListener() error {
	if p.listening {
		return nil
	}
	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(p.page); err != nil {
		return fmt.Errorf("rodpage: add binding: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wait := p.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		p.mu.Lock()
		s := p.subs[e.Payload]
		p.mu.Unlock()
		if s != nil {
			s.n.Signal()
		}
	})
	go wait()

	p.stop = cancel
	p.listening = true
	return nil
}

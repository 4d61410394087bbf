// Package browser owns the Chrome instance rodpage documents live in. It
// either launches a local headless Chrome or attaches to a remote one, and
// opens stealth tabs on it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

var (
	ErrClosed     = errors.New("browser: manager is closed")
	ErrNotStarted = errors.New("browser: no active browser")
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL attaches to an existing Chrome DevTools endpoint (ws://...).
	// Empty launches a local Chrome.
	RemoteURL string

	// Headful shows the window of a locally launched Chrome.
	Headful bool

	// ResourceBlocking lists resource types tabs refuse to load:
	// images, fonts, media, stylesheets, or any CDP resource type.
	ResourceBlocking []string

	// NavTimeout bounds navigation plus load of a new tab. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

// Manager holds at most one browser connection for its lifetime.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	local   *launcher.Launcher // nil when attached to a remote Chrome
	closed  bool
}

// NewManager creates a Manager. Nothing is launched until Start.
func NewManager(cfg Config) *Manager {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg}
}

// Start connects to Chrome, launching it first unless RemoteURL is set.
// It is idempotent: later calls return the connected browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return nil, ErrClosed
	case m.browser != nil:
		return m.browser, nil
	}

	controlURL, err := m.controlURL(ctx)
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		m.stopLocal()
		return nil, fmt.Errorf("browser: connect %s: %w", controlURL, err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		m.cfg.Logger.Warn("browser: ignore cert errors failed", "error", err)
	}
	m.browser = b
	return b, nil
}

func (m *Manager) controlURL(ctx context.Context) (string, error) {
	if m.cfg.RemoteURL != "" {
		m.cfg.Logger.Info("browser: attaching to remote chrome", "url", m.cfg.RemoteURL)
		return m.cfg.RemoteURL, nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(!m.cfg.Headful).
		Set("disable-blink-features", "AutomationControlled")
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("browser: launch: %w", err)
	}
	m.local = l
	m.cfg.Logger.Info("browser: launched chrome", "url", u, "headful", m.cfg.Headful)
	return u, nil
}

// Browser returns the connected browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close disconnects and, for a launched Chrome, kills the process. A
// closed Manager cannot be restarted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.stopLocal()
	return err
}

// stopLocal kills a launched Chrome. The caller holds m.mu.
func (m *Manager) stopLocal() {
	if m.local != nil {
		m.local.Cleanup()
		m.local = nil
	}
}

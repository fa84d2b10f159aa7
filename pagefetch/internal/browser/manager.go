// Package browser manages the Chrome process behind the browser fetch mode:
// launch or connect via Rod, hand out isolated incognito contexts, and
// render pages in stealth tabs.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local headless Chrome.
	RemoteURL string

	// ResourceBlocking lists resource types to block (images, fonts, media,
	// stylesheets).
	ResourceBlocking []string

	// NavTimeout bounds navigation and load. Default: 60s.
	NavTimeout time.Duration

	// SettleDelay is waited after load so scripts can finish writing the
	// page. Default: 2s.
	SettleDelay time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	} else if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process (or remote connection).
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome or connects to the remote instance.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return nil
	}

	b, err := m.launch(ctx)
	if err != nil {
		return err
	}
	m.browser = b
	return nil
}

// Running reports whether a browser is connected.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// NewContext opens an incognito browser context. Cookies, storage and cache
// are private to it; closing it closes its tabs.
func (m *Manager) NewContext() (*Context, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	inc, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito: %w", err)
	}
	return &Context{b: inc, cfg: m.cfg}, nil
}

// Close shuts Chrome down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Warn("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx).Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Cleanup()
			m.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

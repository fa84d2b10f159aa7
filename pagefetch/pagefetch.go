// Package pagefetch acquires quiz pages and the files they link to.
//
// Three modes are supported. ModeHTTP issues a plain GET. ModeBrowser renders
// the page in headless Chrome so scripts run before the snapshot is taken.
// ModeAuto GETs first and only renders when the body looks like a script
// shell. Each chain gets its own Session: a private cookie jar and, when a
// browser is used, a private incognito context.
package pagefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/quizchain/horosafe"
	"github.com/hazyhaar/quizchain/pagefetch/internal/browser"
)

// Mode selects how pages are acquired.
type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
	ModeAuto    Mode = "auto"
)

// ParseMode parses a mode name; empty means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeHTTP, ModeBrowser, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("pagefetch: unknown mode %q", s)
	}
}

// ErrHTTPStatus is wrapped by errors for non-2xx responses.
var ErrHTTPStatus = errors.New("pagefetch: unexpected HTTP status")

// ErrNoBrowser is returned in browser mode when Chrome is not running.
var ErrNoBrowser = errors.New("pagefetch: browser not available")

// Config configures a Fetcher.
type Config struct {
	// Mode selects the acquisition path. Default: ModeAuto.
	Mode Mode `yaml:"mode"`

	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// PageTimeout bounds browser navigation. Default: 60s.
	PageTimeout time.Duration `yaml:"page_timeout"`

	// SettleDelay is waited after a rendered page loads. Default: 2s.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// MaxPageBytes caps a page body. Default: 10 MiB.
	MaxPageBytes int64 `yaml:"max_page_bytes"`

	// MaxFileSize caps a downloaded file. Default: 10 MiB.
	MaxFileSize int64 `yaml:"max_file_size"`

	UserAgent string `yaml:"user_agent"`

	// RemoteURL is the DevTools URL of an external Chrome.
	RemoteURL string `yaml:"remote_url"`

	// ResourceBlocking lists resource types the browser does not load.
	// Default: images, fonts, media.
	ResourceBlocking []string `yaml:"resource_blocking"`

	// URLValidator vets every page, file and redirect URL.
	// Default: horosafe.ValidateURL.
	URLValidator horosafe.Validator `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 60 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.MaxPageBytes <= 0 {
		c.MaxPageBytes = 10 << 20
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if c.ResourceBlocking == nil {
		c.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher holds the shared Chrome process and hands out Sessions.
type Fetcher struct {
	cfg Config
	mgr *browser.Manager

	mu      sync.RWMutex
	browser bool
}

// New creates a Fetcher. Call Start before use in browser or auto mode.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	f := &Fetcher{cfg: cfg}
	if cfg.Mode != ModeHTTP {
		f.mgr = browser.NewManager(browser.Config{
			RemoteURL:        cfg.RemoteURL,
			ResourceBlocking: cfg.ResourceBlocking,
			NavTimeout:       cfg.PageTimeout,
			SettleDelay:      cfg.SettleDelay,
			Logger:           cfg.Logger,
		})
	}
	return f
}

// Mode returns the configured mode.
func (f *Fetcher) Mode() Mode { return f.cfg.Mode }

// Start launches Chrome for browser and auto modes. In auto mode a launch
// failure is logged and pages are fetched over HTTP only.
func (f *Fetcher) Start(ctx context.Context) error {
	if f.mgr == nil {
		return nil
	}
	if err := f.mgr.Start(ctx); err != nil {
		if f.cfg.Mode == ModeAuto {
			f.cfg.Logger.Warn("pagefetch: browser unavailable, using http only", "error", err)
			return nil
		}
		return fmt.Errorf("pagefetch: start: %w", err)
	}
	f.mu.Lock()
	f.browser = true
	f.mu.Unlock()
	return nil
}

// BrowserAvailable reports whether pages can be rendered.
func (f *Fetcher) BrowserAvailable() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.browser
}

// Close stops Chrome.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	f.browser = false
	f.mu.Unlock()
	if f.mgr == nil {
		return nil
	}
	return f.mgr.Close()
}

// NewSession returns an isolated Session for one chain.
func (f *Fetcher) NewSession() *Session {
	return newSession(f)
}

// newContext opens a browser context, or reports ErrNoBrowser.
func (f *Fetcher) newContext() (renderer, error) {
	if !f.BrowserAvailable() {
		return nil, ErrNoBrowser
	}
	bc, err := f.mgr.NewContext()
	if err != nil {
		return nil, err
	}
	return bc, nil
}

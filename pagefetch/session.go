package pagefetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"github.com/hazyhaar/quizchain/horosafe"
	"github.com/hazyhaar/quizchain/pagefetch/internal/browser"
	"github.com/hazyhaar/quizchain/snapshot"
)

// renderer is a browser context able to render pages.
type renderer interface {
	Render(ctx context.Context, pageURL string) (*browser.Rendered, error)
	Close() error
}

// Session fetches pages and files for one chain. Its cookies and browser
// context are never shared with other sessions. A Session is used by one
// goroutine at a time.
type Session struct {
	cfg    Config
	client *http.Client
	open   func() (renderer, error)

	mu     sync.Mutex
	render renderer
	closed bool
}

func newSession(f *Fetcher) *Session {
	jar, _ := cookiejar.New(nil)
	validate := f.cfg.URLValidator
	return &Session{
		cfg: f.cfg,
		client: &http.Client{
			Timeout: f.cfg.Timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		open: f.newContext,
	}
}

// FetchSnapshot acquires pageURL according to the fetch mode and extracts a
// snapshot from it.
func (s *Session) FetchSnapshot(ctx context.Context, pageURL string) (*snapshot.Snapshot, error) {
	if err := s.cfg.URLValidator(pageURL); err != nil {
		return nil, fmt.Errorf("pagefetch: url blocked: %w", err)
	}
	log := s.cfg.Logger.With("url", pageURL, "mode", s.cfg.Mode)

	switch s.cfg.Mode {
	case ModeBrowser:
		return s.rendered(ctx, pageURL)

	case ModeHTTP:
		body, _, err := s.get(ctx, pageURL, s.cfg.MaxPageBytes)
		if err != nil {
			return nil, err
		}
		return snapshot.Build(pageURL, body, ""), nil

	default:
		body, _, err := s.get(ctx, pageURL, s.cfg.MaxPageBytes)
		if err != nil {
			return nil, err
		}
		if IsSufficient(body) {
			log.Debug("pagefetch: static page", "size", len(body))
			return snapshot.Build(pageURL, body, ""), nil
		}
		snap, rerr := s.rendered(ctx, pageURL)
		if rerr == nil {
			log.Debug("pagefetch: escalated to browser")
			return snap, nil
		}
		if !errors.Is(rerr, ErrNoBrowser) {
			log.Warn("pagefetch: render failed, using http body", "error", rerr)
		}
		return snapshot.Build(pageURL, body, ""), nil
	}
}

func (s *Session) rendered(ctx context.Context, pageURL string) (*snapshot.Snapshot, error) {
	r, err := s.renderer()
	if err != nil {
		return nil, err
	}
	page, err := r.Render(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("pagefetch: render: %w", err)
	}
	if int64(len(page.HTML)) > s.cfg.MaxPageBytes {
		return nil, fmt.Errorf("pagefetch: rendered page exceeds %d bytes", s.cfg.MaxPageBytes)
	}
	return snapshot.Build(pageURL, page.HTML, page.Text), nil
}

// renderer opens the session's browser context on first use.
func (s *Session) renderer() (renderer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("pagefetch: session closed")
	}
	if s.render != nil {
		return s.render, nil
	}
	r, err := s.open()
	if err != nil {
		return nil, err
	}
	s.render = r
	return r, nil
}

// DownloadFile GETs a linked file, capped at MaxFileSize.
func (s *Session) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	if err := s.cfg.URLValidator(fileURL); err != nil {
		return nil, fmt.Errorf("pagefetch: url blocked: %w", err)
	}
	data, _, err := s.get(ctx, fileURL, s.cfg.MaxFileSize)
	return data, err
}

func (s *Session) get(ctx context.Context, rawURL string, maxBytes int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("pagefetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("pagefetch: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("%w: %d from %s", ErrHTTPStatus, resp.StatusCode, rawURL)
	}
	body, err := horosafe.LimitedReadAll(resp.Body, maxBytes)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("pagefetch: read %s: %w", rawURL, err)
	}
	return body, resp.StatusCode, nil
}

// Close releases the session's browser context.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.render == nil {
		return nil
	}
	err := s.render.Close()
	s.render = nil
	return err
}

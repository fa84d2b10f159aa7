package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Rendered is a page after scripts have run.
type Rendered struct {
	URL  string // final URL after redirects
	HTML []byte // document.documentElement.outerHTML
	Text string // document.body.innerText
}

// Context is one incognito browser context, used by a single chain.
type Context struct {
	b   *rod.Browser
	cfg Config
}

// Render opens a stealth tab, navigates to pageURL, waits for load plus the
// settle delay, then reads the DOM and the rendered text.
func (c *Context) Render(ctx context.Context, pageURL string) (*Rendered, error) {
	page, err := stealth.Page(c.b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(c.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, c.cfg.ResourceBlocking); err != nil {
			c.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		c.cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	if err := settle(navCtx, c.cfg.SettleDelay); err != nil {
		return nil, fmt.Errorf("browser: settle %s: %w", pageURL, err)
	}

	html, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	text, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return nil, fmt.Errorf("browser: get text: %w", err)
	}

	final := pageURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		final = info.URL
	}
	return &Rendered{URL: final, HTML: []byte(html.Value.Str()), Text: text.Value.Str()}, nil
}

// Close disposes the incognito context and its tabs.
func (c *Context) Close() error {
	if c.b == nil {
		return nil
	}
	return c.b.Close()
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package submit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/quizchain/horosafe"
)

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// Timeout bounds each POST. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxBytes caps the response read. Default: horosafe.MaxResponseBody.
	MaxBytes int64 `yaml:"max_bytes"`

	UserAgent string `yaml:"user_agent"`

	// URLValidator vets the endpoint and every redirect.
	// Default: horosafe.ValidateURL.
	URLValidator horosafe.Validator `yaml:"-"`
}

func (c *HTTPConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "quizchain/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
}

// HTTPTransport posts JSON over net/http.
type HTTPTransport struct {
	client *http.Client
	cfg    HTTPConfig
}

// NewHTTPTransport creates an HTTPTransport. client may be nil; its
// CheckRedirect is replaced so redirects are validated and capped.
func NewHTTPTransport(client *http.Client, cfg HTTPConfig) *HTTPTransport {
	cfg.defaults()
	var c http.Client
	if client != nil {
		c = *client
	}
	c.Timeout = cfg.Timeout
	validate := cfg.URLValidator
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("too many redirects (%d)", len(via))
		}
		if err := validate(req.URL.String()); err != nil {
			return fmt.Errorf("redirect blocked: %w", err)
		}
		return nil
	}
	return &HTTPTransport{client: &c, cfg: cfg}
}

// Post sends body to url and returns the status and (capped) response body.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	if err := t.cfg.URLValidator(url); err != nil {
		return 0, nil, fmt.Errorf("submit: endpoint blocked: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("submit: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("submit: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, t.cfg.MaxBytes)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("submit: read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

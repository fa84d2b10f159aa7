// Package submit posts answers to quiz endpoints.
//
// A Client retries transport failures and non-success statuses with a
// linearly growing pause, then turns the final response into an Outcome.
// Submit never returns an error: every failure is described by the Outcome.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/quizchain/answer"
)

// MaxRawBody is how much of an unparseable response body is kept.
const MaxRawBody = 500

// ErrorKind classifies a failed submission.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindBadStatus ErrorKind = "bad_status"
	KindMalformed ErrorKind = "malformed_response"
)

// Payload is the JSON body posted to a quiz endpoint. URL is the quiz page,
// not the endpoint.
type Payload struct {
	Email  string        `json:"email"`
	Secret string        `json:"secret"`
	URL    string        `json:"url"`
	Answer answer.Answer `json:"answer"`
}

// Outcome is the result of one Submit call. It is never modified once
// returned.
type Outcome struct {
	HTTPStatus int       `json:"http_status,omitempty"`
	Correct    *bool     `json:"correct,omitempty"`
	NextURL    string    `json:"next_url,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RawBody    string    `json:"raw_body,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Err        string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
}

// IsCorrect reports whether the endpoint accepted the answer.
func (o Outcome) IsCorrect() bool { return o.Correct != nil && *o.Correct }

// Failed reports whether the submission itself failed.
func (o Outcome) Failed() bool { return o.ErrorKind != "" }

// response is the expected shape of a quiz endpoint reply.
type response struct {
	Correct *bool  `json:"correct"`
	URL     string `json:"url"`
	Reason  string `json:"reason"`
}

// Transport performs a single POST of a JSON body.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) (status int, respBody []byte, err error)
}

// Config configures a Client.
type Config struct {
	// MaxAttempts is the number of tries per Submit. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is multiplied by the attempt number between tries. Default: 1s.
	BaseDelay time.Duration `yaml:"base_delay"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client submits answers through a Transport.
type Client struct {
	transport Transport
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithSleep replaces the pause between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a Client.
func New(t Transport, cfg Config, opts ...Option) *Client {
	cfg.defaults()
	c := &Client{transport: t, cfg: cfg, sleep: sleepCtx}
	for _, o := range opts {
		o(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func successStatus(code int) bool {
	return code == 200 || code == 201 || code == 202
}

// Submit posts p to endpoint.
func (c *Client) Submit(ctx context.Context, endpoint string, p Payload) Outcome {
	body, err := json.Marshal(p)
	if err != nil {
		return Outcome{ErrorKind: KindMalformed, Err: fmt.Sprintf("submit: marshal: %v", err)}
	}
	log := c.cfg.Logger.With("endpoint", endpoint)

	var (
		lastKind   ErrorKind
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.cfg.BaseDelay*time.Duration(attempt-1)); err != nil {
				return Outcome{HTTPStatus: lastStatus, ErrorKind: KindTimeout, Err: fmt.Sprintf("submit: %v", err), Attempts: attempt - 1}
			}
		}

		status, resp, err := c.transport.Post(ctx, endpoint, body)
		if err != nil {
			lastKind, lastErr, lastStatus = classify(err), err, 0
			log.Warn("submit: request failed", "attempt", attempt, "error", err)
			continue
		}
		if !successStatus(status) {
			lastKind, lastErr, lastStatus = KindBadStatus, fmt.Errorf("status %d", status), status
			log.Warn("submit: bad status", "attempt", attempt, "status", status)
			continue
		}
		return decode(status, resp, attempt)
	}

	return Outcome{
		HTTPStatus: lastStatus,
		ErrorKind:  lastKind,
		Err:        fmt.Sprintf("submit: all %d attempts failed: %v", c.cfg.MaxAttempts, lastErr),
		Attempts:   c.cfg.MaxAttempts,
	}
}

func decode(status int, body []byte, attempts int) Outcome {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		// Not a verdict: keep status and text, leave Correct unset.
		return Outcome{
			HTTPStatus: status,
			RawBody:    truncate(string(body), MaxRawBody),
			Attempts:   attempts,
		}
	}
	return Outcome{
		HTTPStatus: status,
		Correct:    r.Correct,
		NextURL:    r.URL,
		Reason:     r.Reason,
		Attempts:   attempts,
	}
}

// classify maps a transport error to an ErrorKind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

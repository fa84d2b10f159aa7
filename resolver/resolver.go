// Package resolver derives a quiz answer from a page snapshot.
//
// Resolution runs an ordered list of strategies and returns the first value
// one of them produces. Strategies are plain functions sharing one
// signature, so each can be tested alone and the order is data, not control
// flow. Given the same snapshot, files and retry flag the result is the same.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/quizchain/answer"
	"github.com/hazyhaar/quizchain/snapshot"
)

// defaultHint is the label token used when summing labelled values.
const defaultHint = "value"

// FileSource downloads the bytes behind a file link.
type FileSource func(ctx context.Context, url string) ([]byte, error)

// Config configures a Resolver.
type Config struct {
	// DownloadTimeout bounds each file download. Default: 60s.
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	// MaxFileSize skips files larger than this many bytes. Default: 10 MiB.
	MaxFileSize int64 `yaml:"max_file_size"`

	// Strategies overrides the cascade. Default: DefaultStrategies().
	Strategies []Strategy `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 60 * time.Second
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 << 20
	}
	if c.Strategies == nil {
		c.Strategies = DefaultStrategies()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Strategy is one heuristic of the cascade.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, in *Input) (answer.Answer, bool)
}

// Input is what a strategy sees: the snapshot, the retry flag and a
// download function whose results are cached for the duration of one
// Resolve call.
type Input struct {
	Snapshot *snapshot.Snapshot
	Retry    bool
	Logger   *slog.Logger

	files   FileSource
	timeout time.Duration
	maxSize int64
	cache   map[string]download
}

type download struct {
	data []byte
	err  error
}

// Download fetches url through the resolver's FileSource, bounded by the
// per-download timeout. Repeated calls for the same URL reuse the first
// result.
func (in *Input) Download(ctx context.Context, url string) ([]byte, error) {
	if d, ok := in.cache[url]; ok {
		return d.data, d.err
	}
	d := in.fetch(ctx, url)
	in.cache[url] = d
	return d.data, d.err
}

func (in *Input) fetch(ctx context.Context, url string) download {
	if in.files == nil {
		return download{err: fmt.Errorf("resolver: no file source")}
	}
	dctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()
	data, err := in.files(dctx, url)
	if err != nil {
		return download{err: fmt.Errorf("resolver: download %s: %w", url, err)}
	}
	if int64(len(data)) > in.maxSize {
		return download{err: fmt.Errorf("resolver: %s exceeds %d bytes", url, in.maxSize)}
	}
	return download{data: data}
}

// Resolver runs the strategy cascade.
type Resolver struct {
	cfg Config
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{cfg: cfg}
}

// Strategies returns the cascade in evaluation order.
func (r *Resolver) Strategies() []Strategy {
	return r.cfg.Strategies
}

// Resolve returns the first answer produced by the cascade. ok is false
// when no strategy yields a value.
func (r *Resolver) Resolve(ctx context.Context, snap *snapshot.Snapshot, files FileSource, retry bool) (answer.Answer, bool) {
	if snap == nil {
		return answer.Answer{}, false
	}
	log := r.cfg.Logger.With("url", snap.SourceURL, "retry", retry)

	in := &Input{
		Snapshot: snap,
		Retry:    retry,
		Logger:   log,
		files:    files,
		timeout:  r.cfg.DownloadTimeout,
		maxSize:  r.cfg.MaxFileSize,
		cache:    make(map[string]download),
	}

	for _, s := range r.cfg.Strategies {
		if a, ok := s.Run(ctx, in); ok && !a.IsZero() {
			log.Info("resolver: answer found", "strategy", s.Name, "answer", a.String())
			return a, true
		}
	}
	log.Warn("resolver: no strategy produced an answer")
	return answer.Answer{}, false
}

// Package chain drives a quiz chain: fetch a page, resolve an answer,
// submit it, then retry, advance to the next quiz or stop.
//
// An Orchestrator owns nothing shared. Each Run builds its own ChainState,
// so concurrent runs only need their own Fetcher session.
package chain

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/quizchain/answer"
	"github.com/hazyhaar/quizchain/idgen"
	"github.com/hazyhaar/quizchain/resolver"
	"github.com/hazyhaar/quizchain/snapshot"
	"github.com/hazyhaar/quizchain/submit"
)

// Fetcher acquires quiz pages and the files they link to.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, url string) (*snapshot.Snapshot, error)
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}

// Resolver derives an answer from a snapshot.
type Resolver interface {
	Resolve(ctx context.Context, snap *snapshot.Snapshot, files resolver.FileSource, retry bool) (answer.Answer, bool)
}

// Submitter posts an answer and reports the outcome.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, p submit.Payload) submit.Outcome
}

// Clock is the time source of a run.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Identity is sent with every submission.
type Identity struct {
	Email  string
	Secret string
}

// Config configures an Orchestrator.
type Config struct {
	// Budget is the wall-clock limit of a run. Default: 180s.
	Budget time.Duration `yaml:"budget"`

	// MaxRetries is how many times a wrong answer is retried per quiz.
	// Default: 3. A negative value disables retries.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the pause before each retry. Default: 1s.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// FetchTimeout bounds each page fetch. Default: 60s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	Logger *slog.Logger `yaml:"-"`
	Clock  Clock        `yaml:"-"`

	// RunIDs names runs. Default: idgen.RunID.
	RunIDs idgen.Generator `yaml:"-"`

	// Observer, when set, is called each time the run enters a state.
	Observer func(State, ChainState) `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Budget <= 0 {
		c.Budget = 180 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.RunIDs == nil {
		c.RunIDs = idgen.RunID
	}
}

// State is a step of the run loop.
type State int

const (
	StateFetching State = iota
	StateResolving
	StateSubmitting
	StateEvaluating
	StateRetrying
	StateAdvancing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateResolving:
		return "resolving"
	case StateSubmitting:
		return "submitting"
	case StateEvaluating:
		return "evaluating"
	case StateRetrying:
		return "retrying"
	case StateAdvancing:
		return "advancing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Status is how a run terminated.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusTimeout   Status = "timeout"
	StatusExhausted Status = "exhausted"
	StatusFatal     Status = "fatal"
)

// ErrorKind classifies an entry of the error record.
type ErrorKind string

const (
	ErrFetch           ErrorKind = "fetch"
	ErrResolutionEmpty ErrorKind = "resolution_empty"
	ErrSubmission      ErrorKind = "submission"
	ErrWrongAnswer     ErrorKind = "wrong_answer"
	ErrCancelled       ErrorKind = "cancelled"
)

// ErrorEntry is one recorded failure.
type ErrorEntry struct {
	QuizIndex int       `json:"quiz_index"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

// Attempt is one submission of a quiz.
type Attempt struct {
	Answer  answer.Answer  `json:"answer"`
	Retry   bool           `json:"retry"`
	Outcome submit.Outcome `json:"outcome"`
}

// QuizResult summarises one quiz that reached submission. Answer and
// Outcome are those of the last attempt.
type QuizResult struct {
	Index      int            `json:"quiz_index"`
	URL        string         `json:"url"`
	Answer     answer.Answer  `json:"answer"`
	Outcome    submit.Outcome `json:"outcome"`
	Correct    bool           `json:"correct"`
	RetryCount int            `json:"retry_count"`
	Attempts   []Attempt      `json:"attempts"`
}

func (r *QuizResult) record(a answer.Answer, retry bool, out submit.Outcome) {
	r.Answer = a
	r.Outcome = out
	r.Correct = out.IsCorrect()
	r.Attempts = append(r.Attempts, Attempt{Answer: a, Retry: retry, Outcome: out})
}

// ChainState is the mutable state of one run.
type ChainState struct {
	CurrentURL        string
	QuizIndex         int
	Started           time.Time
	PerQuizRetryCount int
	Solved            []QuizResult
	Errors            []ErrorEntry
}

func (s *ChainState) fail(kind ErrorKind, msg string) {
	s.Errors = append(s.Errors, ErrorEntry{QuizIndex: s.QuizIndex, Kind: kind, Message: msg})
}

// Report is the outcome of a run.
type Report struct {
	RunID        string       `json:"run_id"`
	StartURL     string       `json:"start_url"`
	Status       Status       `json:"status"`
	Success      bool         `json:"success"`
	FinalMessage string       `json:"final_message"`
	TotalQuizzes int          `json:"total_quizzes"`
	Solved       []QuizResult `json:"quiz_results"`
	Errors       []ErrorEntry `json:"errors"`
	ElapsedMS    int64        `json:"elapsed_ms"`
}

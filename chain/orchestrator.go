package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hazyhaar/quizchain/snapshot"
	"github.com/hazyhaar/quizchain/submit"
)

const (
	msgSuccess   = "All quizzes completed successfully"
	msgExhausted = "Could not solve quiz %d"
	msgFatal     = "Chain stopped at quiz %d"
	msgTimeout   = "Timeout reached (%s)"
)

// Orchestrator runs quiz chains.
type Orchestrator struct {
	fetcher   Fetcher
	resolver  Resolver
	submitter Submitter
	cfg       Config
}

// New creates an Orchestrator.
func New(f Fetcher, r Resolver, s Submitter, cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{fetcher: f, resolver: r, submitter: s, cfg: cfg}
}

// Run solves the chain starting at startURL. It always returns a complete
// report, whatever happened along the way.
func (o *Orchestrator) Run(ctx context.Context, startURL string, id Identity) *Report {
	st := &ChainState{CurrentURL: startURL, QuizIndex: 1, Started: o.cfg.Clock.Now()}
	runID := o.cfg.RunIDs()
	log := o.cfg.Logger.With("run", runID)
	log.Info("chain: started", "url", startURL, "budget", o.cfg.Budget)

	status, msg := o.loop(ctx, st, id, log)
	o.enter(StateTerminated, st)

	r := &Report{
		RunID:        runID,
		StartURL:     startURL,
		Status:       status,
		Success:      status == StatusSuccess,
		FinalMessage: msg,
		TotalQuizzes: len(st.Solved),
		Solved:       st.Solved,
		Errors:       st.Errors,
		ElapsedMS:    o.cfg.Clock.Now().Sub(st.Started).Milliseconds(),
	}
	if r.Solved == nil {
		r.Solved = []QuizResult{}
	}
	if r.Errors == nil {
		r.Errors = []ErrorEntry{}
	}
	log.Info("chain: finished", "status", status, "quizzes", r.TotalQuizzes, "errors", len(r.Errors), "elapsed_ms", r.ElapsedMS)
	return r
}

func (o *Orchestrator) enter(s State, st *ChainState) {
	if o.cfg.Observer != nil {
		o.cfg.Observer(s, *st)
	}
}

// boundary stops the run when the context is done or the budget is spent.
func (o *Orchestrator) boundary(ctx context.Context, st *ChainState) (Status, string, bool) {
	if err := ctx.Err(); err != nil {
		st.fail(ErrCancelled, err.Error())
		return StatusFatal, fmt.Sprintf(msgFatal, st.QuizIndex), true
	}
	if o.cfg.Clock.Now().Sub(st.Started) >= o.cfg.Budget {
		return StatusTimeout, fmt.Sprintf(msgTimeout, o.cfg.Budget), true
	}
	return "", "", false
}

func (o *Orchestrator) loop(ctx context.Context, st *ChainState, id Identity, log *slog.Logger) (Status, string) {
	for {
		if status, msg, stop := o.boundary(ctx, st); stop {
			log.Warn("chain: stopped before fetch", "quiz", st.QuizIndex, "status", status)
			return status, msg
		}

		o.enter(StateFetching, st)
		snap, err := o.fetch(ctx, st.CurrentURL)
		if err != nil {
			log.Error("chain: fetch failed", "quiz", st.QuizIndex, "url", st.CurrentURL, "error", err)
			st.fail(ErrFetch, err.Error())
			return StatusFatal, fmt.Sprintf(msgFatal, st.QuizIndex)
		}

		status, msg, next := o.solve(ctx, st, snap, id, log)
		if next == "" {
			return status, msg
		}

		o.enter(StateAdvancing, st)
		st.PerQuizRetryCount = 0
		st.QuizIndex++
		st.CurrentURL = next
		log.Info("chain: advancing", "quiz", st.QuizIndex, "url", next)
	}
}

func (o *Orchestrator) fetch(ctx context.Context, pageURL string) (*snapshot.Snapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()
	snap, err := o.fetcher.FetchSnapshot(fctx, pageURL)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.New("chain: fetcher returned no snapshot")
	}
	return snap, nil
}

// solve resolves and submits one quiz, retrying wrong answers on the same
// snapshot. A non-empty next means the run advances to that URL.
func (o *Orchestrator) solve(ctx context.Context, st *ChainState, snap *snapshot.Snapshot, id Identity, log *slog.Logger) (status Status, msg, next string) {
	qlog := log.With("quiz", st.QuizIndex)

	o.enter(StateResolving, st)
	a, ok := o.resolver.Resolve(ctx, snap, o.fetcher.DownloadFile, false)
	if !ok || a.IsZero() {
		qlog.Warn("chain: no answer found")
		st.fail(ErrResolutionEmpty, "no strategy produced an answer")
		return StatusExhausted, fmt.Sprintf(msgExhausted, st.QuizIndex), ""
	}

	endpoint := snap.SubmissionURL
	if endpoint == "" {
		endpoint = st.CurrentURL
	}
	result := QuizResult{Index: st.QuizIndex, URL: st.CurrentURL}
	defer func() { st.Solved = append(st.Solved, result) }()

	retry := false
	for {
		o.enter(StateSubmitting, st)
		out := o.submitter.Submit(ctx, endpoint, submit.Payload{
			Email:  id.Email,
			Secret: id.Secret,
			URL:    st.CurrentURL,
			Answer: a,
		})
		result.record(a, retry, out)

		o.enter(StateEvaluating, st)
		switch {
		case out.Failed():
			qlog.Error("chain: submission failed", "kind", out.ErrorKind, "error", out.Err)
			st.fail(ErrSubmission, fmt.Sprintf("%s: %s", out.ErrorKind, out.Err))
			return StatusFatal, fmt.Sprintf(msgFatal, st.QuizIndex), ""

		case out.IsCorrect():
			qlog.Info("chain: answer accepted", "answer", a.String(), "retries", st.PerQuizRetryCount)
			if n := nextURL(st.CurrentURL, out.NextURL); n != "" && n != st.CurrentURL {
				return "", "", n
			}
			return StatusSuccess, msgSuccess, ""
		}

		qlog.Info("chain: answer rejected", "answer", a.String(), "reason", out.Reason, "retries", st.PerQuizRetryCount)
		if st.PerQuizRetryCount >= o.cfg.MaxRetries {
			st.fail(ErrWrongAnswer, fmt.Sprintf("answer rejected after %d retries", st.PerQuizRetryCount))
			return StatusExhausted, fmt.Sprintf(msgExhausted, st.QuizIndex), ""
		}
		if status, msg, stop := o.boundary(ctx, st); stop {
			return status, msg, ""
		}

		o.enter(StateRetrying, st)
		st.PerQuizRetryCount++
		result.RetryCount = st.PerQuizRetryCount
		if err := o.cfg.Clock.Sleep(ctx, o.cfg.RetryDelay); err != nil {
			st.fail(ErrCancelled, err.Error())
			return StatusFatal, fmt.Sprintf(msgFatal, st.QuizIndex), ""
		}

		o.enter(StateResolving, st)
		retry = true
		a, ok = o.resolver.Resolve(ctx, snap, o.fetcher.DownloadFile, true)
		if !ok || a.IsZero() {
			qlog.Warn("chain: no answer found on retry")
			st.fail(ErrResolutionEmpty, "no strategy produced an answer on retry")
			return StatusExhausted, fmt.Sprintf(msgExhausted, st.QuizIndex), ""
		}
	}
}

// nextURL resolves a follow-up link against the current page.
func nextURL(current, next string) string {
	if next == "" {
		return ""
	}
	base, err := url.Parse(current)
	if err != nil {
		return next
	}
	ref, err := url.Parse(next)
	if err != nil {
		return next
	}
	return base.ResolveReference(ref).String()
}

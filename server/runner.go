package server

import (
	"context"

	"github.com/hazyhaar/quizchain/chain"
	"github.com/hazyhaar/quizchain/pagefetch"
)

// RunFunc solves the chain starting at startURL on behalf of id.
type RunFunc func(ctx context.Context, startURL string, id chain.Identity) *chain.Report

// NewChainRunner returns a RunFunc that gives every chain its own fetch
// session, closed when the chain ends.
func NewChainRunner(f *pagefetch.Fetcher, r chain.Resolver, s chain.Submitter, cfg chain.Config) RunFunc {
	return func(ctx context.Context, startURL string, id chain.Identity) *chain.Report {
		session := f.NewSession()
		defer func() {
			if err := session.Close(); err != nil && cfg.Logger != nil {
				cfg.Logger.Warn("server: close session", "error", err)
			}
		}()
		return chain.New(session, r, s, cfg).Run(ctx, startURL, id)
	}
}

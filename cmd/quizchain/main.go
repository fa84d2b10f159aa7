// Command quizchain solves chains of quiz pages.
//
// Usage:
//
//	quizchain serve                          # HTTP API on HOST:PORT
//	quizchain solve --url https://quiz/1     # one chain, report on stdout
//	quizchain mcp                            # MCP tool server on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/quizchain/chain"
	"github.com/hazyhaar/quizchain/horosafe"
	"github.com/hazyhaar/quizchain/internal/config"
	"github.com/hazyhaar/quizchain/pagefetch"
	"github.com/hazyhaar/quizchain/resolver"
	"github.com/hazyhaar/quizchain/server"
	"github.com/hazyhaar/quizchain/shield"
	"github.com/hazyhaar/quizchain/submit"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "quizchain",
		Short:         "Solve chains of quiz pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(solveCmd(&configPath))
	root.AddCommand(mcpCmd(&configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "quizchain:", err)
		stop()
		os.Exit(1)
	}
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	fetcher *pagefetch.Fetcher
	limiter *shield.RateLimiter
	srv     *server.Server
	run     server.RunFunc
}

// setup loads configuration and builds the solver. Logs go to stderr so
// stdout stays clean for reports and the MCP stdio transport.
func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	validate := horosafe.ValidatorFor(cfg.Fetch.AllowPrivateURLs)
	if cfg.Fetch.AllowPrivateURLs {
		logger.Warn("quizchain: private URLs allowed")
	}

	fetcher := pagefetch.New(pagefetch.Config{
		Mode:             cfg.FetchMode(),
		Timeout:          cfg.Fetch.RequestTimeout,
		PageTimeout:      cfg.Fetch.PageTimeout,
		SettleDelay:      cfg.Fetch.SettleDelay,
		MaxFileSize:      cfg.Fetch.MaxFileSize,
		RemoteURL:        cfg.Fetch.ChromeRemoteURL,
		ResourceBlocking: cfg.Fetch.ResourceBlocking,
		URLValidator:     validate,
		Logger:           logger,
	})
	if err := fetcher.Start(ctx); err != nil {
		return nil, err
	}

	res := resolver.New(resolver.Config{
		DownloadTimeout: cfg.Fetch.RequestTimeout,
		MaxFileSize:     cfg.Fetch.MaxFileSize,
		Logger:          logger,
	})
	sub := submit.New(
		submit.NewHTTPTransport(nil, submit.HTTPConfig{
			Timeout:      cfg.Fetch.RequestTimeout,
			URLValidator: validate,
		}),
		submit.Config{Logger: logger},
	)
	run := server.NewChainRunner(fetcher, res, sub, chain.Config{
		Budget:       cfg.Chain.Budget,
		MaxRetries:   cfg.Chain.MaxRetries,
		RetryDelay:   cfg.Chain.RetryDelay,
		FetchTimeout: cfg.Fetch.RequestTimeout,
		Logger:       logger,
	})

	limiter := shield.NewRateLimiter(cfg.RateLimit)
	srv := server.New(server.Config{
		Secret:       cfg.Identity.Secret,
		SecretBcrypt: cfg.Identity.SecretBcrypt,
		Run:          run,
		RateLimiter:  limiter,
		// Headroom over the chain budget for the last submission.
		SolveTimeout: cfg.Chain.Budget + cfg.Fetch.RequestTimeout,
		Logger:       logger,
	})

	logger.Info("quizchain: ready",
		"mode", cfg.FetchMode(),
		"browser", fetcher.BrowserAvailable(),
		"budget", cfg.Chain.Budget,
		"max_retries", cfg.Chain.MaxRetries,
	)
	return &app{cfg: cfg, logger: logger, fetcher: fetcher, limiter: limiter, srv: srv, run: run}, nil
}

func (a *app) close() {
	if err := a.fetcher.Close(); err != nil {
		a.logger.Warn("quizchain: close browser", "error", err)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.Identity.Secret == "" && a.cfg.Identity.SecretBcrypt == "" {
				a.logger.Warn("quizchain: no secret configured, every /solve call will be rejected")
			}

			httpSrv := &http.Server{
				Addr:              a.cfg.Addr(),
				Handler:           a.srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      a.cfg.Chain.Budget + 2*a.cfg.Fetch.RequestTimeout,
				IdleTimeout:       60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			a.limiter.StartGC(5*time.Minute, gctx.Done())
			g.Go(func() error {
				a.logger.Info("quizchain: listening", "addr", httpSrv.Addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("quizchain: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func solveCmd(configPath *string) *cobra.Command {
	var startURL string
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one chain and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := horosafe.CheckHTTPURL(startURL); err != nil {
				return fmt.Errorf("--url: %w", err)
			}
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireIdentity(); err != nil {
				return err
			}

			report := a.run(ctx, startURL, chain.Identity{Email: a.cfg.Identity.Email, Secret: a.cfg.Identity.Secret})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Success {
				return fmt.Errorf("chain ended with status %s: %s", report.Status, report.FinalMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&startURL, "url", "", "URL of the first quiz")
	cmd.MarkFlagRequired("url")
	return cmd
}

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the quizchain_solve tool over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.srv.NewMCPServer().Run(ctx, &mcp.StdioTransport{})
		},
	}
}

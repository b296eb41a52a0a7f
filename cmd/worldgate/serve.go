package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawaret/worldgate/pkg"
	"github.com/pawaret/worldgate/pkg/api"
	"github.com/pawaret/worldgate/pkg/config"
	"github.com/pawaret/worldgate/pkg/handoff"
	"github.com/pawaret/worldgate/pkg/login"
	"github.com/pawaret/worldgate/pkg/metrics"
	"github.com/pawaret/worldgate/pkg/proof"
	"github.com/pawaret/worldgate/pkg/worldid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := worldid.NewClient(newProviderConfig(cfg), &http.Client{}, m)

	store, closeStore, err := newHandoffStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	server, err := api.NewServer(
		api.WithAuthenticator(login.NewService(client, login.Options{
			ClientID:           cfg.ClientID,
			AuthorizeURL:       cfg.Endpoints.AuthorizeURL,
			DefaultRedirectURI: cfg.RedirectURI(),
			Metrics:            m,
		})),
		api.WithProofVerifier(proof.NewService(client, m)),
		api.WithHandoff(handoff.NewService(store, cfg.HandoffTTL)),
		api.WithRedirectURI(cfg.RedirectURI()),
		api.WithStateEnforcement(cfg.EnforceState),
		api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	e := api.NewEcho(server)

	slog.Info("Starting worldgate",
		"version", pkg.Version,
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"client_id", cfg.ClientID,
		"client_secret", cfg.ClientSecret,
		"redirect_uri", cfg.RedirectURI(),
		"enforce_state", cfg.EnforceState,
	)
	if !cfg.EnforceState {
		slog.Warn("OAuth state validation is disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newProviderConfig(cfg *config.Config) worldid.Config {
	return worldid.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret.Value(),
		TokenURL:     cfg.Endpoints.TokenURL,
		UserInfoURL:  cfg.Endpoints.UserInfoURL,
		VerifyURL:    cfg.Endpoints.VerifyURL,
		Timeout:      cfg.ProviderTimeout,
		UserAgent:    "worldgate/" + pkg.Version,
	}
}

func newHandoffStore(ctx context.Context, cfg *config.Config) (handoff.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("Using in-memory handoff store")
		return handoff.NewMemoryStore(), func() {}, nil
	}

	store, err := handoff.NewRedisStoreFromURL(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect handoff store: %w", err)
	}
	slog.Info("Using redis handoff store")
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}, nil
}

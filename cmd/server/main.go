// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package main is the entry point for the AutoWL Auto Watch Later pipeline.

# Application Architecture

The server initializes components in the following order:

 1. Configuration: load settings from environment variables and an
    optional config file (koanf v2).
 2. Logging: initialize zerolog with the configured level/format.
 3. Token Vault: load or generate the AES-256-GCM master key.
 4. Store: open the configured database (SQLite, Postgres, or SqlServer)
    and verify connectivity.
 5. Platform API Client: build the YouTube Data API v3 client wrapping
    OAuth2 and a circuit breaker.
 6. Background loops: Token Refresh, WebSub Manager, Fallback Poller,
    Fan-Out Processor, each wrapped as a supervised ticker service.
 7. HTTP surface: webhook receiver + diagnostics read model, mounted
    under one server and supervised alongside the background loops.

# Signal Handling

The process handles graceful shutdown on SIGINT and SIGTERM: the
supervisor tree cancels its context, in-flight HTTP requests and ticks
get up to a 10-second grace window (spec.md §5), then the process exits.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchlaterhq/autowl/internal/bootstrap"
	"github.com/watchlaterhq/autowl/internal/config"
	"github.com/watchlaterhq/autowl/internal/diagnostics"
	"github.com/watchlaterhq/autowl/internal/fanout"
	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/poller"
	"github.com/watchlaterhq/autowl/internal/store"
	"github.com/watchlaterhq/autowl/internal/supervisor"
	"github.com/watchlaterhq/autowl/internal/tokenrefresh"
	"github.com/watchlaterhq/autowl/internal/vault"
	"github.com/watchlaterhq/autowl/internal/webhook"
	"github.com/watchlaterhq/autowl/internal/websub"
)

// youtubePlatformHost is matched against the hub.topic of a verification
// GET: a topic that does not contain it is rejected with 400. Push
// notification POSTs are not checked against it. AutoWL
// speaks to exactly one platform today, so this is a constant rather
// than a config key.
const youtubePlatformHost = "youtube.com"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("starting autowl")

	v, err := vault.New(cfg.DataProtection.KeyDirectory)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize token vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()
	logging.Info().Str("provider", string(cfg.DatabaseProvider)).Msg("store opened")

	youtubeCreds, ok := cfg.PlatformCredentials("youtube")
	if !ok {
		logging.Fatal().Msg("missing youtube OAuth credentials")
	}
	client := platform.New(youtubeCreds)

	tree := supervisor.New(supervisor.DefaultTreeConfig())

	refreshLoop := tokenrefresh.New(db, client, v)
	tree.AddBackgroundService(&supervisor.TickerService{
		Name:     "token-refresh",
		Interval: config.FixedTokenRefreshInterval,
		Tick:     refreshLoop.Tick,
	})

	websubManager := websub.New(db, cfg.CallbackURL())
	tree.AddBackgroundService(&supervisor.TickerService{
		Name:     "websub-manager",
		Interval: config.FixedWebSubInterval,
		Tick:     websubManager.Tick,
	})

	fallbackPoller := poller.New(db, client, v, cfg.YouTubePolling.Interval())
	tree.AddBackgroundService(&supervisor.TickerService{
		Name:     "fallback-poller",
		Interval: cfg.YouTubePolling.Interval(),
		Tick:     fallbackPoller.Tick,
	})

	fanoutProcessor := fanout.New(db, client, v)
	tree.AddBackgroundService(&supervisor.TickerService{
		Name:     "fanout-processor",
		Interval: cfg.VideoProcessing.Interval(),
		Tick:     fanoutProcessor.Tick,
	})

	webhookHandler := webhook.New(db, youtubePlatformHost)
	diagnosticsHandler := diagnostics.New(db)
	bootstrapSyncer := bootstrap.New(db, client, v, websubManager)
	bootstrapHandler := bootstrap.NewHandler(bootstrapSyncer)

	root := chi.NewRouter()
	root.Mount("/webhook", webhook.NewRouter(webhookHandler))
	root.Mount("/bootstrap", bootstrap.NewRouter(bootstrapHandler))
	root.Mount("/", diagnostics.NewRouter(diagnosticsHandler))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: root,
	}
	tree.AddHTTPService(&supervisor.HTTPService{
		Server:          server,
		ShutdownTimeout: 10 * time.Second,
		Name:            "http-surface",
	})
	logging.Info().Str("addr", server.Addr).Msg("http surface configured")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("supervisor tree exited with error")
	}

	logging.Info().Msg("autowl stopped")
}

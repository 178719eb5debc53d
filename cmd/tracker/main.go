// Command tracker follows the Twitch channel points of one or more
// accounts over PubSub. It loads one config file per account, runs a
// tracker for each, and shuts down on SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Guliveer/twitch-points-tracker/internal/chat"
	"github.com/Guliveer/twitch-points-tracker/internal/config"
	"github.com/Guliveer/twitch-points-tracker/internal/constants"
	"github.com/Guliveer/twitch-points-tracker/internal/logger"
	"github.com/Guliveer/twitch-points-tracker/internal/metrics"
	"github.com/Guliveer/twitch-points-tracker/internal/miner"
	"github.com/Guliveer/twitch-points-tracker/internal/notify"
	"github.com/Guliveer/twitch-points-tracker/internal/server"
	"github.com/Guliveer/twitch-points-tracker/internal/twitch"
)

func main() {
	configDir := flag.String("config", "configs", "Path to the configuration directory")
	port := flag.String("port", "8080", "Port for the health/analytics HTTP server")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL env)")
	noColor := flag.Bool("no-color", false, "Disable colored output (overrides TTY detection)")
	logDir := flag.String("log-dir", "", "Directory for per-account log files (disabled when empty)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *logLevel != "" {
		level = logger.ParseLevel(*logLevel)
	} else if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = logger.ParseLevel(envLevel)
	}

	httpPort := *port
	if envPort := os.Getenv("PORT"); envPort != "" {
		httpPort = envPort
	}

	colored := !*noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""

	rootLog, err := logger.Setup(logger.Config{
		Level:     level,
		FileLevel: slog.LevelDebug,
		Colored:   colored,
		LogDir:    *logDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	rootLog.Info("🚀 Starting Twitch Points Tracker")

	configs, err := config.LoadAllAccountConfigs(*configDir)
	if err != nil {
		rootLog.Error("Failed to load account configs", "dir", *configDir, "error", err)
		os.Exit(1)
	}
	for _, cfg := range configs {
		if err := config.Validate(cfg); err != nil {
			rootLog.Error("Invalid config", "account", cfg.Username, "error", err)
			os.Exit(1)
		}
	}
	rootLog.Info("📂 Loaded account configurations", "count", len(configs), "config_dir", *configDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		rootLog.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		time.AfterFunc(constants.ForcedExitTimeout, func() {
			rootLog.Error("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	m := metrics.New()
	addr := ":" + httpPort
	analytics := server.NewAnalyticsServer(addr, m.Handler(), rootLog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return analytics.Run(gctx)
	})

	for _, cfg := range configs {
		if !cfg.IsEnabled() {
			rootLog.Info("Account is disabled, skipping", "account", cfg.Username)
			continue
		}
		accountLog := rootLog.WithAccount(cfg.Username)
		g.Go(func() error {
			if err := runAccount(gctx, cfg, accountLog, m, analytics); err != nil {
				accountLog.Error("Tracker failed", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		rootLog.Error("Shutting down after failure", "error", err)
	}
	rootLog.Info("👋 All trackers stopped. Goodbye!")
}

// runAccount logs in, wires one account's collaborators and runs its
// tracker until ctx is cancelled.
func runAccount(ctx context.Context, cfg *config.AccountConfig, log *logger.Logger, m *metrics.Metrics, analytics *server.AnalyticsServer) error {
	dispatcher := notify.NewDispatcher(cfg.Username, cfg.Notifications, log)
	if dispatcher.HasNotifiers() {
		log.SetNotifyFunc(dispatcher.NotifyFunc())
		defer dispatcher.Wait()
	}

	tc := twitch.NewClient(cfg, log)
	if err := tc.Login(ctx); err != nil {
		return fmt.Errorf("login failed for %s: %w", cfg.Username, err)
	}

	tracker := miner.New(cfg, log, miner.Deps{
		API:     tc,
		Chat:    chat.NewManager(cfg.Username, tc.AuthToken(), log),
		Tokens:  tc,
		Metrics: m.Account(cfg.Username),
	})
	analytics.AddAccount(tracker)

	return tracker.Run(ctx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/settlement-quoter/api"
	"github.com/warp/settlement-quoter/config"
	"github.com/warp/settlement-quoter/metrics"
	"github.com/warp/settlement-quoter/session"
	"github.com/warp/settlement-quoter/store/sqlite"
	"github.com/warp/settlement-quoter/webhook"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Logging, flags.logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// serve wires the service and blocks until SIGINT/SIGTERM.
//
// STARTUP SEQUENCE:
//  1. Delivery log, session backend, metrics
//  2. Listen, then start serving
//  3. Fetch the webhook URL from the config endpoint in the background
//
// GRACEFUL SHUTDOWN:
//  Stop accepting connections, wait for active requests up to
//  server.shutdown_timeout, stop the sweeper, close stores.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Submitter starts on the placeholder until the config fetch answers.
	target := webhook.NewTarget("")
	submitter := webhook.NewSubmitter(target, cfg.Webhook.Timeout, logger)
	submitter.Metrics = m

	checks := map[string]api.HealthCheck{}

	var deliveries *sqlite.Store
	if cfg.Store.DeliveryLogPath != "" {
		if err := ensureDir(cfg.Store.DeliveryLogPath); err != nil {
			return err
		}
		deliveries, err = sqlite.New(cfg.Store.DeliveryLogPath)
		if err != nil {
			return fmt.Errorf("failed to initialize delivery log: %w", err)
		}
		defer deliveries.Close()
		submitter.Recorder = deliveries
		checks["delivery_log"] = deliveries.Ping
	}

	store, closeStore, err := newSessionStore(ctx, cfg.Session, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if rs, ok := store.(*session.RedisStore); ok {
		checks["redis"] = rs.Ping
	}

	sweeper := session.NewSweeper(store, logger)
	sweeper.Interval = cfg.Session.SweepInterval
	sweeper.MaxIdle = cfg.Session.TTL
	if cfg.Session.Backend == config.SessionBackendMemory {
		sweeper.Start()
		defer sweeper.Stop()
	}

	svc := session.NewService(store, submitter, session.Options{
		Location:    loc,
		YearsAhead:  cfg.Quote.YearsAhead,
		Logger:      logger,
		Metrics:     m,
		// Webhook call plus the outcome write.
		SubmitLease: 2 * cfg.Webhook.Timeout,
	})

	handler := api.NewHandler(svc, logger)
	handler.Metrics = m
	handler.WebhookURL = cfg.Webhook.URL
	handler.ServePlaceholder = cfg.Webhook.ServePlaceholder
	handler.Checks = checks
	if deliveries != nil {
		handler.Deliveries = deliveries
	}

	server := &http.Server{
		Handler:      api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", ln.Addr().String()), zap.String("version", version))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	endpoint := cfg.Webhook.ConfigEndpoint
	if endpoint == "" {
		endpoint = selfURL(ln.Addr()) + "/api/config"
	}
	webhook.NewConfigLoader(endpoint, cfg.Webhook.Timeout, logger, m).Start(ctx, target)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (session.Store, func(), error) {
	if cfg.Backend != config.SessionBackendRedis {
		return session.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := session.NewRedisStore(client, cfg.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("using redis session store", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
	return store, func() { client.Close() }, nil
}

// selfURL turns a listen address into a loopback URL.
func selfURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return nil
}

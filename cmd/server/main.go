package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kursun12/gardorop-relay/internal/adapter/httpserver"
	"github.com/kursun12/gardorop-relay/internal/adapter/metrics"
	"github.com/kursun12/gardorop-relay/internal/adapter/redis"
	"github.com/kursun12/gardorop-relay/internal/platform/config"
	"github.com/kursun12/gardorop-relay/internal/platform/logging"
	"github.com/kursun12/gardorop-relay/internal/platform/version"
	"github.com/kursun12/gardorop-relay/internal/relay"
	goredis "github.com/redis/go-redis/v9"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

type shutdownDeps struct {
	srv          *httpserver.Server
	hub          *relay.Hub
	stopMirror   context.CancelFunc
	drainTimeout time.Duration
}

// runGracefulShutdown closes every peer before the listener goes away so
// clients see a normal closure instead of a dropped socket.
func runGracefulShutdown(deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("Shutdown signal received, cleaning up...", "signal", sig.String())

		deps.hub.Stop()
		deps.stopMirror()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.drainTimeout)
		defer cancel()
		if err := deps.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	reg := metrics.NewRegistry()
	hubMetrics := metrics.NewHubMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	opts := relay.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		SendBuffer:        cfg.PeerSendBuffer,
		MaxMessageBytes:   cfg.MaxMessageBytes,
	}

	var (
		mirror       *redis.Mirror
		healthChecks []httpserver.HealthCheck
	)
	if cfg.MirrorEnabled() {
		redisClient := setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		mirror = redis.NewMirror(redisClient, cfg.RedisChannel, metrics.NewMirrorMetrics(reg))
		// Assigned only here to avoid a typed-nil publisher.
		opts.Publisher = mirror
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "redis", Check: mirror.Ping})
		slog.Info("Cross-instance mirror enabled", "channel", cfg.RedisChannel, "instance", mirror.InstanceID())
	}

	hub := relay.NewHub(opts, clockwork.NewRealClock(), hubMetrics)

	mirrorCtx, stopMirror := context.WithCancel(context.Background())
	defer stopMirror()
	if mirror != nil {
		go func() {
			if err := mirror.Run(mirrorCtx, hub.ApplyRemote); err != nil {
				slog.Error("Mirror subscription ended", "error", err)
			}
		}()
	}

	srv := httpserver.NewServer(cfg, hub, metrics.Handler(reg), httpMetrics, healthChecks)

	done := runGracefulShutdown(shutdownDeps{
		srv:          srv,
		hub:          hub,
		stopMirror:   stopMirror,
		drainTimeout: cfg.ShutdownTimeout,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}

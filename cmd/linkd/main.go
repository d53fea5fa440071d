// linkd keeps a configured set of outbound TCP connections alive, sends them
// a periodic heartbeat, and forwards published events to the sessions that
// subscribe to them.
//
// Usage: linkd --config configs/linkd.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tcplink/internal/config"
	"github.com/rickgao/tcplink/internal/connection"
	"github.com/rickgao/tcplink/internal/database"
	"github.com/rickgao/tcplink/internal/driver"
	"github.com/rickgao/tcplink/internal/publisher"
	"github.com/rickgao/tcplink/internal/version"
	"github.com/rickgao/tcplink/internal/writer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "linkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("linkd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "configs/linkd.yaml", "path to config file")
	watch := flags.Bool("watch", true, "reload connections when the config file changes")
	showVersion := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return err
	}

	// Set up structured logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting linkd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Event sinks
	sinks := writer.Tee{writer.NewLogSink(logger)}

	var pool *pgxpool.Pool
	var eventWriter *writer.EventWriter
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		eventWriter = writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
		}, pool, logger)
		eventWriter.Start(ctx)
		sinks = append(sinks, eventWriter)
	}

	// Connection registry
	registry := connection.NewRegistry(managerConfig(cfg), logger)
	for _, cc := range cfg.ConnectionConfigs() {
		if err := registry.AddConnection(cc); err != nil {
			return err
		}
	}
	if err := registry.Start(ctx); err != nil {
		return err
	}

	// Periodic drivers
	heartbeat := driver.NewHeartbeat(driver.HeartbeatConfig{
		Interval: cfg.Heartbeat.Interval,
		Payload:  []byte(cfg.Heartbeat.Payload),
	}, registry, logger)
	heartbeat.Start(ctx)

	dispatcher := driver.NewDispatcher(driver.DispatcherConfig{
		Interval: cfg.Dispatch.Interval,
	}, registry, sinks, logger)
	dispatcher.Start(ctx)

	// HTTP: health, debug and optional ingest
	var ingest *publisher.IngestHandler
	if cfg.Ingest.Enabled {
		ingest = publisher.NewIngestHandler(registry, cfg.Ingest.MaxMessageSize, logger)
	}

	mux := http.NewServeMux()
	mux.Handle("/", createHealthHandler(registry, pool, dispatcher, ingest))
	if ingest != nil {
		mux.Handle(cfg.Ingest.Path, ingest)
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		sub := publisher.NewRedisSubscriber(client, cfg.Redis.ChannelPrefix, registry, logger)
		g.Go(func() error {
			return sub.Run(gctx)
		})
	}

	if *watch {
		w := config.NewWatcher(*configPath, config.DefaultDebounce, func(next *config.LinkdConfig) {
			if err := registry.Reload(next.ConnectionConfigs()); err != nil {
				logger.Warn("connection reload failed", "err", err)
			}
		}, logger)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	logger.Info("linkd running",
		"instance_id", cfg.Instance.ID,
		"connections", len(cfg.Connections),
		"health_url", "http://"+healthHost(cfg.HTTP.Addr)+"/health",
	)

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("linkd failed", "err", runErr)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	steps := []stopStep{
		{"heartbeat", heartbeat},
		{"dispatcher", dispatcher},
		{"registry", registry},
	}
	if eventWriter != nil {
		steps = append(steps, stopStep{"event writer", eventWriter})
	}
	stopAll(shutdownCtx, logger, steps)

	logger.Info("linkd stopped")
	return runErr
}

func managerConfig(cfg *config.LinkdConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		Session: connection.SessionConfig{
			ConnectTimeout: cfg.Session.ConnectTimeout,
			WriteTimeout:   cfg.Session.WriteTimeout,
			ReadTimeout:    cfg.Session.ReadTimeout,
			MaxFrameSize:   cfg.Session.MaxFrameSize,
		},
		Reconnect: connection.ReconnectConfig{
			Strategy:   cfg.Reconnect.Strategy,
			Delay:      cfg.Reconnect.Delay,
			MaxDelay:   cfg.Reconnect.MaxDelay,
			Multiplier: cfg.Reconnect.Multiplier,
			Jitter:     cfg.Reconnect.Jitter,
		},
		ConnectRate:  cfg.ConnectRate.PerSecond,
		ConnectBurst: cfg.ConnectRate.Burst,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func healthHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// streamtest connects to one or more TCP endpoints and streams every inbound
// line to the console. Heartbeats are sent the same way linkd sends them.
//
// Usage: go run ./cmd/streamtest --connect 127.0.0.1:9000 --connect 127.0.0.1:9001
// or:    go run ./cmd/streamtest --config configs/linkd.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/rickgao/tcplink/internal/config"
	"github.com/rickgao/tcplink/internal/connection"
	"github.com/rickgao/tcplink/internal/driver"
	"github.com/rickgao/tcplink/internal/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "streamtest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("streamtest", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file (optional)")
	endpoints := flags.StringArray("connect", nil, "host:port to connect to (repeatable)")
	class := flags.String("class", string(model.DefaultClass), "subscription class for --connect endpoints")
	interval := flags.Duration("heartbeat", time.Second, "heartbeat interval (0 disables)")
	verbose := flags.BoolP("verbose", "v", false, "print full frame JSON")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	conns, mgrCfg, err := resolve(*configPath, *endpoints, model.SubscriptionClass(*class))
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		return errors.New("nothing to connect to: pass --connect or --config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	registry := connection.NewRegistry(mgrCfg, logger,
		connection.WithFrameHandler(connection.FrameHandlerFunc(func(f connection.Frame) {
			printFrame(f, *verbose)
		})),
	)
	for _, cc := range conns {
		if err := registry.AddConnection(cc); err != nil {
			return err
		}
	}

	logger.Info("starting connection registry", "endpoints", len(conns))
	if err := registry.Start(ctx); err != nil {
		return err
	}

	var heartbeat *driver.Heartbeat
	if *interval > 0 {
		heartbeat = driver.NewHeartbeat(driver.HeartbeatConfig{Interval: *interval}, registry, logger)
		heartbeat.Start(ctx)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := registry.Stats()
				logger.Info("stats",
					"configured", stats.Configured,
					"live", stats.Live,
					"active", stats.Active,
					"pending_reconnects", stats.Pending,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	if heartbeat != nil {
		heartbeat.Stop(shutdownCtx)
	}
	registry.Stop(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}

// resolve merges --config connections with --connect endpoints. Session and
// reconnect settings come from the config file when one is given.
func resolve(path string, endpoints []string, class model.SubscriptionClass) ([]model.ConnectionConfig, connection.ManagerConfig, error) {
	mgrCfg := connection.DefaultManagerConfig()
	var conns []model.ConnectionConfig

	if path != "" {
		cfg, err := config.LoadAndValidate(path)
		if err != nil {
			return nil, mgrCfg, err
		}
		mgrCfg.Session.ConnectTimeout = cfg.Session.ConnectTimeout
		mgrCfg.Session.WriteTimeout = cfg.Session.WriteTimeout
		mgrCfg.Session.ReadTimeout = cfg.Session.ReadTimeout
		mgrCfg.Session.MaxFrameSize = cfg.Session.MaxFrameSize
		mgrCfg.Reconnect.Strategy = cfg.Reconnect.Strategy
		mgrCfg.Reconnect.Delay = cfg.Reconnect.Delay
		mgrCfg.Reconnect.MaxDelay = cfg.Reconnect.MaxDelay
		conns = cfg.ConnectionConfigs()
	}

	for _, ep := range endpoints {
		host, port, err := model.ParseEndpointKey(ep)
		if err != nil {
			return nil, mgrCfg, fmt.Errorf("--connect %q: %w", ep, err)
		}
		cc := model.ConnectionConfig{Host: host, Port: port, AutoReconnect: true, Class: class}
		if err := cc.Validate(); err != nil {
			return nil, mgrCfg, fmt.Errorf("--connect %q: %w", ep, err)
		}
		conns = append(conns, cc)
	}
	return conns, mgrCfg, nil
}

func printFrame(f connection.Frame, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(struct {
			Endpoint   model.EndpointKey `json:"endpoint"`
			SessionID  string            `json:"session_id"`
			Data       string            `json:"data"`
			ReceivedAt time.Time         `json:"received_at"`
		}{f.Key, f.SessionID.String(), string(f.Data), f.ReceivedAt}, "", "  ")
		fmt.Printf("[FRAME] %s\n", data)
		return
	}
	fmt.Printf("[FRAME] endpoint=%s session=%s data=%q\n", f.Key, f.SessionID, f.Data)
}

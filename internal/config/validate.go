package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/tcplink/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *LinkdConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if err := validateConnections(c.Connections); err != nil {
		return err
	}

	if c.Session.MaxFrameSize < 16 {
		return errors.New("session.max_frame_size must be >= 16")
	}
	if c.Session.ConnectTimeout < 0 || c.Session.WriteTimeout < 0 || c.Session.ReadTimeout < 0 {
		return errors.New("session timeouts must be >= 0")
	}

	if c.Reconnect.Strategy != "constant" && c.Reconnect.Strategy != "exponential" {
		return fmt.Errorf("reconnect.strategy must be constant or exponential, got %q", c.Reconnect.Strategy)
	}
	if c.Reconnect.Delay <= 0 {
		return errors.New("reconnect.delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.Delay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be less than delay (%v)", c.Reconnect.MaxDelay, c.Reconnect.Delay)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter >= 1 {
		return errors.New("reconnect.jitter must be in [0, 1)")
	}

	if c.ConnectRate.PerSecond < 0 {
		return errors.New("connect_rate.per_second must be >= 0")
	}
	if c.ConnectRate.Burst < 1 {
		return errors.New("connect_rate.burst must be >= 1")
	}

	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}
	if c.Dispatch.Interval <= 0 {
		return errors.New("dispatch.interval must be > 0")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Ingest.Enabled && !strings.HasPrefix(c.Ingest.Path, "/") {
		return fmt.Errorf("ingest.path must start with /, got %q", c.Ingest.Path)
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}

	return nil
}

func validateConnections(entries []ConnectionEntry) error {
	seen := make(map[model.EndpointKey]int, len(entries))
	for i, e := range entries {
		prefix := fmt.Sprintf("connections[%d]", i)
		if e.Host == "" {
			return fmt.Errorf("%s.host is required", prefix)
		}
		if e.Port < 1 || e.Port > 65535 {
			return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, e.Port)
		}
		key := e.ConnectionConfig().Key()
		if j, ok := seen[key]; ok {
			return fmt.Errorf("%s duplicates connections[%d] (%s)", prefix, j, key)
		}
		seen[key] = i
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/tcplink/internal/model"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-linkd
connections:
  - host: 10.0.0.1
    port: 7000
    class: alerts
  - host: 10.0.0.2
    port: 7001
    auto_reconnect: false
reconnect:
  strategy: exponential
  delay: 500ms
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-linkd" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-linkd")
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("len(Connections) = %d, want 2", len(cfg.Connections))
	}
	if cfg.Reconnect.Strategy != "exponential" {
		t.Errorf("Reconnect.Strategy = %q, want exponential", cfg.Reconnect.Strategy)
	}
	if cfg.Reconnect.Delay != 500*time.Millisecond {
		t.Errorf("Reconnect.Delay = %v, want 500ms", cfg.Reconnect.Delay)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PEER_HOST", "peer.internal")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-linkd
connections:
  - host: ${TEST_PEER_HOST}
    port: 9100
database:
  enabled: true
  postgres:
    host: localhost
    name: events
    user: linkd
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Connections[0].Host != "peer.internal" {
		t.Errorf("Connections[0].Host = %q, want %q", cfg.Connections[0].Host, "peer.internal")
	}
	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-linkd
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Reconnect.Strategy != DefaultReconnectStrategy {
		t.Errorf("Reconnect.Strategy = %q, want default %q", cfg.Reconnect.Strategy, DefaultReconnectStrategy)
	}
	if cfg.Reconnect.Delay != DefaultReconnectDelay {
		t.Errorf("Reconnect.Delay = %v, want default %v", cfg.Reconnect.Delay, DefaultReconnectDelay)
	}
	if cfg.Heartbeat.Interval != DefaultHeartbeatInterval {
		t.Errorf("Heartbeat.Interval = %v, want default %v", cfg.Heartbeat.Interval, DefaultHeartbeatInterval)
	}
	if cfg.Heartbeat.Payload != DefaultHeartbeatPayload {
		t.Errorf("Heartbeat.Payload = %q, want default %q", cfg.Heartbeat.Payload, DefaultHeartbeatPayload)
	}
	if cfg.Dispatch.Interval != DefaultDispatchInterval {
		t.Errorf("Dispatch.Interval = %v, want default %v", cfg.Dispatch.Interval, DefaultDispatchInterval)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want default %q", cfg.HTTP.Addr, DefaultHTTPAddr)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestConnectionEntry_ConnectionConfig(t *testing.T) {
	off := false

	tests := []struct {
		name  string
		entry ConnectionEntry
		want  model.ConnectionConfig
	}{
		{
			name:  "defaults",
			entry: ConnectionEntry{Host: "127.0.0.1", Port: 9100},
			want:  model.ConnectionConfig{Host: "127.0.0.1", Port: 9100, AutoReconnect: true, Class: model.DefaultClass},
		},
		{
			name:  "explicit",
			entry: ConnectionEntry{Host: "peer", Port: 7000, AutoReconnect: &off, Class: "alerts"},
			want:  model.ConnectionConfig{Host: "peer", Port: 7000, AutoReconnect: false, Class: "alerts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.ConnectionConfig(); got != tt.want {
				t.Errorf("ConnectionConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() LinkdConfig {
		cfg := LinkdConfig{Instance: InstanceConfig{ID: "test"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *LinkdConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *LinkdConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad log format",
			mutate:  func(c *LinkdConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name: "missing connection host",
			mutate: func(c *LinkdConfig) {
				c.Connections = []ConnectionEntry{{Port: 80}}
			},
			wantErr: "connections[0].host is required",
		},
		{
			name: "connection port out of range",
			mutate: func(c *LinkdConfig) {
				c.Connections = []ConnectionEntry{{Host: "a", Port: 70000}}
			},
			wantErr: "connections[0].port must be between 1 and 65535, got 70000",
		},
		{
			name: "duplicate connection",
			mutate: func(c *LinkdConfig) {
				c.Connections = []ConnectionEntry{{Host: "a", Port: 1}, {Host: "a", Port: 1, Class: "x"}}
			},
			wantErr: "connections[1] duplicates connections[0] (a:1)",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *LinkdConfig) { c.Reconnect.Strategy = "linear" },
			wantErr: `reconnect.strategy must be constant or exponential, got "linear"`,
		},
		{
			name:    "max delay below delay",
			mutate:  func(c *LinkdConfig) { c.Reconnect.MaxDelay = time.Second },
			wantErr: "reconnect.max_delay (1s) cannot be less than delay (3s)",
		},
		{
			name: "database enabled without password",
			mutate: func(c *LinkdConfig) {
				c.Database.Enabled = true
				c.Database.Postgres.Host = "localhost"
				c.Database.Postgres.Name = "db"
				c.Database.Postgres.User = "user"
			},
			wantErr: "database.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *LinkdConfig) {
				c.Database.Enabled = true
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "ingest path",
			mutate: func(c *LinkdConfig) {
				c.Ingest.Enabled = true
				c.Ingest.Path = "ingest"
			},
			wantErr: `ingest.path must start with /, got "ingest"`,
		},
		{
			name: "valid config",
			mutate: func(c *LinkdConfig) {
				c.Connections = []ConnectionEntry{{Host: "127.0.0.1", Port: 9100}, {Host: "127.0.0.1", Port: 9101}}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

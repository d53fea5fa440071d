package config

import (
	"time"

	"github.com/rickgao/tcplink/internal/model"
)

// LinkdConfig is the root configuration for a linkd instance.
type LinkdConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Log         LogConfig         `yaml:"log"`
	Connections []ConnectionEntry `yaml:"connections"`
	Session     SessionConfig     `yaml:"session"`
	Reconnect   ReconnectConfig   `yaml:"reconnect"`
	ConnectRate ConnectRateConfig `yaml:"connect_rate"`
	Heartbeat   HeartbeatConfig   `yaml:"heartbeat"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Redis       RedisConfig       `yaml:"redis"`
	HTTP        HTTPConfig        `yaml:"http"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Database    DatabaseConfig    `yaml:"database"`
	Writer      WriterConfig      `yaml:"writer"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ConnectionEntry is one desired outbound connection.
type ConnectionEntry struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	AutoReconnect *bool  `yaml:"auto_reconnect"` // nil means true
	Class         string `yaml:"class"`
}

// SessionConfig holds per-socket settings.
type SessionConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxFrameSize   int           `yaml:"max_frame_size"`
}

// ReconnectConfig holds the retry policy.
type ReconnectConfig struct {
	Strategy   string        `yaml:"strategy"` // constant or exponential
	Delay      time.Duration `yaml:"delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// ConnectRateConfig throttles connect attempts across all slots.
type ConnectRateConfig struct {
	PerSecond float64 `yaml:"per_second"` // 0 = unlimited
	Burst     int     `yaml:"burst"`
}

// HeartbeatConfig holds keep-alive settings.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Payload  string        `yaml:"payload"`
}

// DispatchConfig holds inbox drain settings.
type DispatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RedisConfig holds the pub/sub publisher adapter settings.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// HTTPConfig holds the health and ingest server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig holds the WebSocket publisher adapter settings.
type IngestConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	MaxMessageSize int64  `yaml:"max_message_size"`
}

// DatabaseConfig holds the optional event store.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ConnectionConfig converts the entry to its runtime form.
func (e ConnectionEntry) ConnectionConfig() model.ConnectionConfig {
	auto := true
	if e.AutoReconnect != nil {
		auto = *e.AutoReconnect
	}
	class := model.SubscriptionClass(e.Class)
	if class == "" {
		class = model.DefaultClass
	}
	return model.ConnectionConfig{
		Host:          e.Host,
		Port:          uint16(e.Port),
		AutoReconnect: auto,
		Class:         class,
	}
}

// ConnectionConfigs converts every configured connection.
func (c *LinkdConfig) ConnectionConfigs() []model.ConnectionConfig {
	out := make([]model.ConnectionConfig, len(c.Connections))
	for i, e := range c.Connections {
		out[i] = e.ConnectionConfig()
	}
	return out
}

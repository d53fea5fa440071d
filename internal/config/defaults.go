package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultConnectTimeout    = 5 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultMaxFrameSize      = 64 * 1024
	DefaultReconnectStrategy = "constant"
	DefaultReconnectDelay    = 3 * time.Second
	DefaultReconnectMaxDelay = 60 * time.Second
	DefaultMultiplier        = 2.0
	DefaultConnectBurst      = 1
	DefaultHeartbeatInterval = 1 * time.Second
	DefaultHeartbeatPayload  = "hello\n"
	DefaultDispatchInterval  = 1 * time.Second
	DefaultRedisAddr         = "localhost:6379"
	DefaultChannelPrefix     = "tcplink:"
	DefaultHTTPAddr          = ":8080"
	DefaultIngestPath        = "/ingest"
	DefaultMaxMessageSize    = 1 << 20
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 2 * time.Second
)

func (c *LinkdConfig) applyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Session defaults
	if c.Session.ConnectTimeout == 0 {
		c.Session.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.MaxFrameSize == 0 {
		c.Session.MaxFrameSize = DefaultMaxFrameSize
	}

	// Reconnect defaults
	if c.Reconnect.Strategy == "" {
		c.Reconnect.Strategy = DefaultReconnectStrategy
	}
	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = DefaultReconnectDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = DefaultMultiplier
	}
	if c.ConnectRate.Burst == 0 {
		c.ConnectRate.Burst = DefaultConnectBurst
	}

	// Driver defaults
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.Payload == "" {
		c.Heartbeat.Payload = DefaultHeartbeatPayload
	}
	if c.Dispatch.Interval == 0 {
		c.Dispatch.Interval = DefaultDispatchInterval
	}

	// Publisher defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = DefaultChannelPrefix
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Ingest.Path == "" {
		c.Ingest.Path = DefaultIngestPath
	}
	if c.Ingest.MaxMessageSize == 0 {
		c.Ingest.MaxMessageSize = DefaultMaxMessageSize
	}

	// Database and writer defaults
	applyDBDefaults(&c.Database.Postgres)
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

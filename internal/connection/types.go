package connection

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tcplink/internal/model"
)

// Errors
var (
	ErrStopped    = errors.New("registry stopped")
	ErrFrameLimit = errors.New("frame exceeds max size")
)

// SessionState is the observable lifecycle stage of a Session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Frame is one newline-delimited message read from a peer.
type Frame struct {
	Key        model.EndpointKey
	SessionID  uuid.UUID
	Data       []byte // without the trailing newline
	ReceivedAt time.Time
}

// FrameHandler receives inbound frames. It is called from the session's strand,
// so it must not block.
type FrameHandler interface {
	HandleFrame(f Frame)
}

// FrameHandlerFunc is a function adapter for FrameHandler.
type FrameHandlerFunc func(Frame)

func (f FrameHandlerFunc) HandleFrame(fr Frame) {
	f(fr)
}

// DisconnectHandler is told once when a session terminates.
type DisconnectHandler interface {
	SessionClosed(key model.EndpointKey, sessionID uuid.UUID, needReconnect bool)
}

// DialFunc opens a TCP connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// SessionConfig configures socket behavior for every session.
type SessionConfig struct {
	ConnectTimeout time.Duration // Dial timeout (0 = none)
	WriteTimeout   time.Duration // Deadline for one full write (0 = none)
	ReadTimeout    time.Duration // Deadline for one frame after a write (0 = none)
	MaxFrameSize   int           // Longest accepted inbound line, in bytes
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    0,
		MaxFrameSize:   64 * 1024,
	}
}

// Reconnect strategies.
const (
	StrategyConstant    = "constant"
	StrategyExponential = "exponential"
)

// ReconnectConfig configures the delay between a drop and the next attempt.
type ReconnectConfig struct {
	Strategy   string        // "constant" or "exponential"
	Delay      time.Duration // Constant delay, or initial delay for exponential
	MaxDelay   time.Duration // Cap for exponential
	Multiplier float64       // Growth factor for exponential
	Jitter     float64       // Randomization factor for exponential (0 = none)
}

// DefaultReconnectConfig returns the fixed three second retry.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Strategy:   StrategyConstant,
		Delay:      3 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}
}

// ManagerConfig configures the Registry.
type ManagerConfig struct {
	Session      SessionConfig
	Reconnect    ReconnectConfig
	ConnectRate  float64 // Connect attempts per second across all slots (0 = unlimited)
	ConnectBurst int     // Burst size for ConnectRate
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Session:      DefaultSessionConfig(),
		Reconnect:    DefaultReconnectConfig(),
		ConnectBurst: 1,
	}
}

// InboxBatch is everything drained from one session's inbox.
type InboxBatch struct {
	Key       model.EndpointKey
	SessionID uuid.UUID
	Events    []model.Event
}

// ConnectionStatus describes one configured slot.
type ConnectionStatus struct {
	Key           model.EndpointKey       `json:"key"`
	Class         model.SubscriptionClass `json:"class"`
	AutoReconnect bool                    `json:"auto_reconnect"`
	State         string                  `json:"state"` // session state, or "waiting" / "idle"
	SessionID     string                  `json:"session_id,omitempty"`
	Attempts      int                     `json:"attempts"`
	FramesRead    int64                   `json:"frames_read"`
	Written       int64                   `json:"messages_written"`
	InboxDepth    int                     `json:"inbox_depth"`
}

// Stats provides counts about the registry.
type Stats struct {
	Configured int
	Live       int
	Active     int
	Pending    int // Slots waiting on a reconnect timer
}

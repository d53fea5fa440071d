package model

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrEmptyHost    = errors.New("host is required")
	ErrInvalidPort  = errors.New("port must be between 1 and 65535")
	ErrInvalidKey   = errors.New("endpoint key must be host:port")
	ErrInvalidClass = errors.New("subscription class must not be empty")
)

// DefaultClass is used for connections configured without a subscription class.
const DefaultClass SubscriptionClass = "default"

// -----------------------------------------------------------------------------
// Endpoints
// -----------------------------------------------------------------------------

// EndpointKey identifies one logical connection slot.
type EndpointKey string

// NewEndpointKey renders host and port in canonical form.
func NewEndpointKey(host string, port uint16) EndpointKey {
	return EndpointKey(net.JoinHostPort(host, strconv.Itoa(int(port))))
}

// ParseEndpointKey splits a key back into host and port.
func ParseEndpointKey(s string) (host string, port uint16, err error) {
	h, p, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil || n == 0 {
		return "", 0, ErrInvalidPort
	}
	if h == "" {
		return "", 0, ErrEmptyHost
	}
	return h, uint16(n), nil
}

func (k EndpointKey) String() string {
	return string(k)
}

// SubscriptionClass routes published events to the sessions interested in them.
type SubscriptionClass string

func (c SubscriptionClass) String() string {
	return string(c)
}

// ConnectionConfig is the desired state of one connection slot.
type ConnectionConfig struct {
	Host          string
	Port          uint16
	AutoReconnect bool
	Class         SubscriptionClass
}

// Key derives the slot identity.
func (c ConnectionConfig) Key() EndpointKey {
	return NewEndpointKey(c.Host, c.Port)
}

// Validate checks that the config can be dialled.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrEmptyHost
	}
	if c.Port == 0 {
		return ErrInvalidPort
	}
	if c.Class == "" {
		return ErrInvalidClass
	}
	return nil
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// Event is an out-of-band message pushed by an external publisher.
type Event struct {
	ID          uuid.UUID
	Class       SubscriptionClass
	Payload     []byte
	PublishedAt time.Time
}

// NewEvent stamps a payload with a fresh ID and the current time.
// The payload is copied so callers may reuse their buffer.
func NewEvent(class SubscriptionClass, payload []byte) Event {
	return Event{
		ID:          uuid.New(),
		Class:       class,
		Payload:     append([]byte(nil), payload...),
		PublishedAt: time.Now(),
	}
}

package model

import (
	"errors"
	"testing"
)

func TestNewEndpointKey(t *testing.T) {
	tests := []struct {
		host string
		port uint16
		want EndpointKey
	}{
		{"127.0.0.1", 9100, "127.0.0.1:9100"},
		{"example.com", 80, "example.com:80"},
		{"::1", 8080, "[::1]:8080"},
	}

	for _, tt := range tests {
		if got := NewEndpointKey(tt.host, tt.port); got != tt.want {
			t.Errorf("NewEndpointKey(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestParseEndpointKey(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantHost string
		wantPort uint16
		wantErr  error
	}{
		{name: "ipv4", in: "127.0.0.1:9100", wantHost: "127.0.0.1", wantPort: 9100},
		{name: "ipv6", in: "[::1]:8080", wantHost: "::1", wantPort: 8080},
		{name: "missing port", in: "localhost", wantErr: ErrInvalidKey},
		{name: "zero port", in: "localhost:0", wantErr: ErrInvalidPort},
		{name: "port too large", in: "localhost:70000", wantErr: ErrInvalidPort},
		{name: "empty host", in: ":9100", wantErr: ErrEmptyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ParseEndpointKey(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %d), want (%q, %d)", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConnectionConfig
		wantErr error
	}{
		{"valid", ConnectionConfig{Host: "127.0.0.1", Port: 9100, Class: "a"}, nil},
		{"no host", ConnectionConfig{Port: 9100, Class: "a"}, ErrEmptyHost},
		{"no port", ConnectionConfig{Host: "127.0.0.1", Class: "a"}, ErrInvalidPort},
		{"no class", ConnectionConfig{Host: "127.0.0.1", Port: 9100}, ErrInvalidClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewEvent_CopiesPayload(t *testing.T) {
	buf := []byte("first")
	ev := NewEvent("a", buf)
	copy(buf, "XXXXX")

	if string(ev.Payload) != "first" {
		t.Errorf("Payload = %q, want %q", ev.Payload, "first")
	}
	if ev.Class != "a" {
		t.Errorf("Class = %q, want a", ev.Class)
	}
	if ev.PublishedAt.IsZero() {
		t.Error("PublishedAt should be set")
	}

	other := NewEvent("a", buf)
	if other.ID == ev.ID {
		t.Error("expected distinct event IDs")
	}
}

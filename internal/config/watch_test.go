package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

func TestWatcher_ReloadsValidChanges(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: one\n")

	var mu sync.Mutex
	var got []*LinkdConfig
	w := NewWatcher(path, 20*time.Millisecond, func(cfg *LinkdConfig) {
		mu.Lock()
		got = append(got, cfg)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	// Invalid: must not reach the callback.
	if err := os.WriteFile(path, []byte("instance:\n  id: \"\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if len(got) != 0 {
		t.Errorf("callback ran %d times for invalid config, want 0", len(got))
	}
	mu.Unlock()

	valid := "instance:\n  id: two\nconnections:\n  - host: 127.0.0.1\n    port: 9100\n"
	if err := os.WriteFile(path, []byte(valid), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("callback never ran for valid config")
	}
	last := got[len(got)-1]
	if last.Instance.ID != "two" {
		t.Errorf("Instance.ID = %q, want two", last.Instance.ID)
	}
	if len(last.ConnectionConfigs()) != 1 {
		t.Errorf("connections = %d, want 1", len(last.ConnectionConfigs()))
	}
}

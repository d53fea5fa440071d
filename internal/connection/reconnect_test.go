package connection

import (
	"testing"
	"time"
)

func TestNewBackOff_ConstantByDefault(t *testing.T) {
	b := newBackOff(DefaultReconnectConfig())

	for i := 0; i < 5; i++ {
		if got := b.NextBackOff(); got != 3*time.Second {
			t.Errorf("NextBackOff() #%d = %v, want 3s", i, got)
		}
	}
}

func TestNewBackOff_ExponentialGrowsAndResets(t *testing.T) {
	cfg := ReconnectConfig{
		Strategy:   StrategyExponential,
		Delay:      100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2,
	}
	b := newBackOff(cfg)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("NextBackOff() #%d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.NextBackOff(); got != 100*time.Millisecond {
		t.Errorf("NextBackOff() after Reset = %v, want 100ms", got)
	}
}

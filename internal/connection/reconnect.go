package connection

import (
	"time"
	"weak"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/tcplink/internal/model"
)

// slot is the desired state for one endpoint.
type slot struct {
	cfg      model.ConnectionConfig
	backoff  backoff.BackOff
	timer    *time.Timer
	attempts int
}

func (sl *slot) stopTimer() {
	if sl.timer != nil {
		sl.timer.Stop()
		sl.timer = nil
	}
}

// scheduleReconnectLocked arms a one-shot timer for key. The timer only holds a
// weak reference, so a registry that has been dropped is not kept alive by a
// pending retry.
func (r *Registry) scheduleReconnectLocked(key model.EndpointKey, sl *slot) {
	delay := sl.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = r.cfg.Reconnect.MaxDelay
	}

	sl.stopTimer()
	ref := weak.Make(r)
	sl.timer = time.AfterFunc(delay, func() {
		if reg := ref.Value(); reg != nil {
			reg.reconnect(key, sl)
		}
	})

	r.logger.Info("reconnect scheduled",
		"endpoint", key,
		"delay", delay,
		"attempts", sl.attempts,
	)
}

// reconnect runs when a retry timer fires. The slot must still be the one the
// timer was armed for, and must still want reconnecting.
func (r *Registry) reconnect(key model.EndpointKey, sl *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sl.timer = nil

	if r.stopped || r.ctx.Err() != nil {
		return
	}
	if r.configs[key] != sl || !sl.cfg.AutoReconnect {
		r.logger.Debug("reconnect cancelled", "endpoint", key)
		return
	}
	if _, ok := r.live[key]; ok {
		return
	}

	r.logger.Info("reconnecting", "endpoint", key, "attempt", sl.attempts+1)
	r.connectLocked(key)
}

func newBackOff(cfg ReconnectConfig) backoff.BackOff {
	if cfg.Strategy == StrategyExponential {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.Delay
		if cfg.MaxDelay > 0 {
			b.MaxInterval = cfg.MaxDelay
		}
		if cfg.Multiplier > 1 {
			b.Multiplier = cfg.Multiplier
		}
		b.RandomizationFactor = cfg.Jitter
		b.Reset()
		return b
	}
	return backoff.NewConstantBackOff(cfg.Delay)
}

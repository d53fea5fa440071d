package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rickgao/tcplink/internal/model"
)

// RedisSubscriber feeds Redis pub/sub messages into a Deliverer.
type RedisSubscriber struct {
	client redis.UniversalClient
	prefix string
	target Deliverer
	logger *slog.Logger

	retryInitial time.Duration
	retryMax     time.Duration

	received atomic.Int64
	dropped  atomic.Int64
	failures atomic.Int64
}

// SubscriberOption customizes a RedisSubscriber.
type SubscriberOption func(*RedisSubscriber)

// WithRetry sets the backoff between failed subscribe attempts.
func WithRetry(initial, maxDelay time.Duration) SubscriberOption {
	return func(s *RedisSubscriber) {
		s.retryInitial = initial
		s.retryMax = maxDelay
	}
}

// NewRedisSubscriber creates a subscriber for channels named prefix+class.
func NewRedisSubscriber(client redis.UniversalClient, prefix string, target Deliverer, logger *slog.Logger, opts ...SubscriberOption) *RedisSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RedisSubscriber{
		client:       client,
		prefix:       prefix,
		target:       target,
		logger:       logger,
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run subscribes and delivers messages until ctx is cancelled. A failed or
// lost subscription is retried with exponential backoff; Run only returns
// once ctx is done.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxInterval = s.retryMax
	b.Reset()

	for {
		err := s.subscribe(ctx, b)
		if ctx.Err() != nil {
			s.logger.Info("redis subscriber stopped",
				"received", s.received.Load(),
				"dropped", s.dropped.Load(),
				"failures", s.failures.Load(),
			)
			return nil
		}

		s.failures.Add(1)
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			delay = s.retryMax
		}
		s.logger.Warn("redis subscription failed, retrying",
			"err", err,
			"delay", delay,
			"failures", s.failures.Load(),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

// subscribe runs one subscription until it fails or ctx is done.
func (s *RedisSubscriber) subscribe(ctx context.Context, b backoff.BackOff) error {
	pattern := s.prefix + "*"
	ps := s.client.PSubscribe(ctx, pattern)
	defer ps.Close()

	// Wait for the subscription to be confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	b.Reset()

	s.logger.Info("redis subscriber started", "pattern", pattern)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			s.handle(msg)
		}
	}
}

func (s *RedisSubscriber) handle(msg *redis.Message) {
	class, ok := ClassFromChannel(s.prefix, msg.Channel)
	if !ok {
		s.dropped.Add(1)
		s.logger.Warn("ignoring message on unexpected channel", "channel", msg.Channel)
		return
	}

	s.received.Add(1)
	n := s.target.DeliverEvent(class, []byte(msg.Payload))
	s.logger.Debug("event published",
		"class", class,
		"sessions", n,
		"bytes", len(msg.Payload),
	)
}

// Publish sends payload on the channel for class.
func (s *RedisSubscriber) Publish(ctx context.Context, class model.SubscriptionClass, payload []byte) (int64, error) {
	return s.client.Publish(ctx, s.prefix+string(class), payload).Result()
}

// Received returns how many messages were delivered.
func (s *RedisSubscriber) Received() int64 {
	return s.received.Load()
}

// Failures returns how many subscribe attempts have failed.
func (s *RedisSubscriber) Failures() int64 {
	return s.failures.Load()
}

// ClassFromChannel extracts the subscription class from a channel name.
func ClassFromChannel(prefix, channel string) (model.SubscriptionClass, bool) {
	class, ok := strings.CutPrefix(channel, prefix)
	if !ok || class == "" {
		return "", false
	}
	return model.SubscriptionClass(class), true
}

package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickgao/tcplink/internal/model"
)

// Registry owns every connection slot: the desired config per endpoint and the
// live session serving it. AddConnection, CloseConnection and Reload are the
// only mutation entry points.
type Registry struct {
	cfg     ManagerConfig
	logger  *slog.Logger
	dial    DialFunc
	frames  FrameHandler
	limiter *rate.Limiter

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
	configs map[model.EndpointKey]*slot
	live    map[model.EndpointKey]*Session

	// Inbox contents of sessions that left live before the next drain.
	leftover []InboxBatch
}

// Option customizes a Registry.
type Option func(*Registry)

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(r *Registry) {
		r.dial = dial
	}
}

// WithFrameHandler routes inbound frames somewhere other than the log.
func WithFrameHandler(h FrameHandler) Option {
	return func(r *Registry) {
		r.frames = h
	}
}

// NewRegistry creates an empty Registry. Connections added before Start are
// recorded and dialled when Start is called.
func NewRegistry(cfg ManagerConfig, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	limit := rate.Inf
	if cfg.ConnectRate > 0 {
		limit = rate.Limit(cfg.ConnectRate)
	}
	burst := cfg.ConnectBurst
	if burst < 1 {
		burst = 1
	}

	r := &Registry{
		cfg:     cfg,
		logger:  logger,
		dial:    dialer.DialContext,
		limiter: rate.NewLimiter(limit, burst),
		configs: make(map[model.EndpointKey]*slot),
		live:    make(map[model.EndpointKey]*Session),
	}
	r.frames = FrameHandlerFunc(func(f Frame) {
		logger.Info("frame received", "endpoint", f.Key, "data", string(f.Data))
	})
	r.ctx, r.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start binds the registry to ctx and dials every configured slot.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if r.started {
		return nil
	}

	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.started = true

	for _, key := range sortedKeys(r.configs) {
		r.connectLocked(key)
	}

	r.logger.Info("connection registry started",
		"connections", len(r.configs),
		"reconnect_strategy", r.cfg.Reconnect.Strategy,
		"reconnect_delay", r.cfg.Reconnect.Delay,
	)
	return nil
}

// Stop disables reconnects, closes every session and waits for them to exit.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.logger.Info("stopping connection registry")

	for _, sl := range r.configs {
		sl.cfg.AutoReconnect = false
		sl.stopTimer()
	}
	sessions := make([]*Session, 0, len(r.live))
	for _, s := range r.live {
		sessions = append(sessions, s)
		s.Close(false)
	}
	r.cancel()
	r.mu.Unlock()

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			r.logger.Warn("connection registry stop timed out")
			return ctx.Err()
		}
	}

	r.logger.Info("connection registry stopped")
	return nil
}

// AddConnection upserts the slot for cc and dials it. A slot that already has a
// live session is superseded: the old session is closed without reconnect.
func (r *Registry) AddConnection(cc model.ConnectionConfig) error {
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("add connection %s: %w", cc.Key(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	r.addLocked(cc)
	return nil
}

// CloseConnection disables reconnect for key and closes its session. The
// config is erased once the session confirms it has terminated.
func (r *Registry) CloseConnection(key model.EndpointKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sl, configured := r.configs[key]
	if configured {
		sl.cfg.AutoReconnect = false
		sl.stopTimer()
	}

	if s, ok := r.live[key]; ok {
		s.Close(false)
		return
	}

	if configured {
		delete(r.configs, key)
		r.logger.Info("connection closed", "endpoint", key)
	}
}

// Reload replaces every slot. Live sessions are closed with reconnect disabled,
// then each entry of cfgs is added. Nothing changes if any entry is invalid.
func (r *Registry) Reload(cfgs []model.ConnectionConfig) error {
	for _, cc := range cfgs {
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("reload %s: %w", cc.Key(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}

	closing := 0
	for key, s := range r.live {
		if sl := r.configs[key]; sl != nil {
			sl.cfg.AutoReconnect = false
		}
		s.Close(false)
		closing++
	}
	for _, sl := range r.configs {
		sl.stopTimer()
	}
	r.configs = make(map[model.EndpointKey]*slot, len(cfgs))

	for _, cc := range cfgs {
		r.addLocked(cc)
	}

	r.logger.Info("connections reloaded",
		"closed", closing,
		"configured", len(r.configs),
	)
	return nil
}

// Send queues msg on key's session. Returns false if there is no session;
// an unknown key and a key that is currently down look the same.
func (r *Registry) Send(key model.EndpointKey, msg []byte) bool {
	r.mu.Lock()
	s := r.live[key]
	r.mu.Unlock()

	if s == nil {
		return false
	}
	s.Enqueue(msg)
	return true
}

// Broadcast queues msg on every live session and returns how many it reached.
func (r *Registry) Broadcast(msg []byte) int {
	sessions := r.sessions(func(*Session) bool { return true })
	for _, s := range sessions {
		s.Enqueue(msg)
	}
	return len(sessions)
}

// DeliverEvent pushes payload into the inbox of every live session subscribed
// to class. No acknowledgement goes back to the publisher.
func (r *Registry) DeliverEvent(class model.SubscriptionClass, payload []byte) int {
	ev := model.NewEvent(class, payload)
	sessions := r.sessions(func(s *Session) bool { return s.Class() == class })
	for _, s := range sessions {
		s.Inbox().Push(ev)
	}
	return len(sessions)
}

// DrainInboxes empties every live session's inbox. Sessions with nothing
// buffered are omitted. Events left behind by sessions that terminated or were
// superseded since the previous drain come first.
func (r *Registry) DrainInboxes() []InboxBatch {
	r.mu.Lock()
	out := r.leftover
	r.leftover = nil
	r.mu.Unlock()

	sessions := r.sessions(func(*Session) bool { return true })
	for _, s := range sessions {
		events := s.Inbox().Drain()
		if len(events) == 0 {
			continue
		}
		out = append(out, InboxBatch{
			Key:       s.Key(),
			SessionID: s.ID(),
			Events:    events,
		})
	}
	return out
}

// SessionClosed implements DisconnectHandler. It is the one place where the
// reconnect policy is decided.
func (r *Registry) SessionClosed(key model.EndpointKey, sessionID uuid.UUID, needReconnect bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.live[key]
	if !ok || s.ID() != sessionID {
		r.logger.Debug("ignoring close of superseded session",
			"endpoint", key,
			"session", sessionID.String(),
		)
		return
	}
	delete(r.live, key)
	r.salvageLocked(s)

	sl := r.configs[key]
	if needReconnect && sl != nil && sl.cfg.AutoReconnect && !r.stopped && r.ctx.Err() == nil {
		r.scheduleReconnectLocked(key, sl)
		return
	}

	if sl != nil {
		delete(r.configs, key)
	}
	r.logger.Info("connection closed, not reconnecting", "endpoint", key)
}

// Connections returns the status of every slot, sorted by key.
func (r *Registry) Connections() []ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make(map[model.EndpointKey]struct{}, len(r.configs)+len(r.live))
	for k := range r.configs {
		keys[k] = struct{}{}
	}
	for k := range r.live {
		keys[k] = struct{}{}
	}

	out := make([]ConnectionStatus, 0, len(keys))
	for key := range keys {
		st := ConnectionStatus{Key: key, State: "idle"}
		if sl, ok := r.configs[key]; ok {
			st.Class = sl.cfg.Class
			st.AutoReconnect = sl.cfg.AutoReconnect
			st.Attempts = sl.attempts
			if sl.timer != nil {
				st.State = "waiting"
			}
		}
		if s, ok := r.live[key]; ok {
			st.Class = s.Class()
			st.State = s.State().String()
			st.SessionID = s.ID().String()
			st.FramesRead = s.read.Load()
			st.Written = s.written.Load()
			st.InboxDepth = s.Inbox().Len()
		}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		Configured: len(r.configs),
		Live:       len(r.live),
	}
	for _, s := range r.live {
		if s.State() == StateActive {
			st.Active++
		}
	}
	for _, sl := range r.configs {
		if sl.timer != nil {
			st.Pending++
		}
	}
	return st
}

// addLocked upserts a slot and dials it if the registry is running.
func (r *Registry) addLocked(cc model.ConnectionConfig) {
	key := cc.Key()
	if old, ok := r.configs[key]; ok {
		old.stopTimer()
	}
	r.configs[key] = &slot{
		cfg:     cc,
		backoff: newBackOff(r.cfg.Reconnect),
	}

	if s, ok := r.live[key]; ok {
		r.logger.Info("superseding live session",
			"endpoint", key,
			"session", s.ID().String(),
		)
		delete(r.live, key)
		r.salvageLocked(s)
		s.Close(false)
	}

	if r.started {
		r.connectLocked(key)
	}
}

// connectLocked starts a new session for key. The session is indexed right
// away so that a close issued while it is still connecting can reach it.
func (r *Registry) connectLocked(key model.EndpointKey) {
	sl := r.configs[key]
	sl.attempts++

	s := newSession(key, sl.cfg.Class, r.cfg.Session, r.frames, r, r.logger)
	r.live[key] = s
	s.start(r.ctx, r.dialLimited, r.sessionOpened)
}

// salvageLocked keeps whatever s's inbox still holds for the next drain.
func (r *Registry) salvageLocked(s *Session) {
	events := s.Inbox().Drain()
	if len(events) == 0 {
		return
	}
	r.leftover = append(r.leftover, InboxBatch{
		Key:       s.Key(),
		SessionID: s.ID(),
		Events:    events,
	})
}

func (r *Registry) sessionOpened(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live[s.Key()] != s {
		return
	}
	if sl := r.configs[s.Key()]; sl != nil {
		sl.backoff.Reset()
	}
}

func (r *Registry) dialLimited(ctx context.Context, network, address string) (net.Conn, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("connect rate: %w", err)
	}
	return r.dial(ctx, network, address)
}

// sessions snapshots the live sessions matching keep, sorted by key.
func (r *Registry) sessions(keep func(*Session) bool) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.live))
	for _, s := range r.live {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func sortedKeys(m map[model.EndpointKey]*slot) []model.EndpointKey {
	keys := make([]model.EndpointKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

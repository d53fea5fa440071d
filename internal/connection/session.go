package connection

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tcplink/internal/model"
)

// Session owns one socket for its whole life. A reconnect always builds a new
// Session; a terminated one is never revived.
//
// The write pipeline pops one queued message, writes it, then reads one frame
// before moving to the next message. Every mutation of the fields below the
// strand happens inside a strand task.
type Session struct {
	key    model.EndpointKey
	id     uuid.UUID
	class  model.SubscriptionClass
	cfg    SessionConfig
	logger *slog.Logger

	frames  FrameHandler
	onClose DisconnectHandler

	inbox *Inbox

	state   atomic.Int32
	read    atomic.Int64
	written atomic.Int64

	strand     *strand
	conn       net.Conn
	reader     *bufio.Reader
	outbound   [][]byte
	writing    bool
	dead       bool
	cancelDial context.CancelFunc
}

func newSession(
	key model.EndpointKey,
	class model.SubscriptionClass,
	cfg SessionConfig,
	frames FrameHandler,
	onClose DisconnectHandler,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultSessionConfig().MaxFrameSize
	}

	id := uuid.New()
	return &Session{
		key:     key,
		id:      id,
		class:   class,
		cfg:     cfg,
		logger:  logger.With("endpoint", key, "session", id.String()),
		frames:  frames,
		onClose: onClose,
		inbox:   NewInbox(),
		strand:  newStrand(),
	}
}

// Key returns the endpoint this session serves.
func (s *Session) Key() model.EndpointKey { return s.key }

// ID returns the identity of this connect attempt.
func (s *Session) ID() uuid.UUID { return s.id }

// Class returns the subscription class used for event routing.
func (s *Session) Class() model.SubscriptionClass { return s.class }

// State returns the last observed lifecycle stage.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Inbox returns the session's event inbox.
func (s *Session) Inbox() *Inbox { return s.inbox }

// Done is closed once the session has terminated and its strand has exited.
func (s *Session) Done() <-chan struct{} { return s.strand.Done() }

// Enqueue queues msg for writing. Messages queued while connecting are sent
// once the socket is up. After termination Enqueue silently drops msg.
func (s *Session) Enqueue(msg []byte) {
	buf := append([]byte(nil), msg...)
	s.strand.post(func() {
		if s.dead {
			return
		}
		wasEmpty := len(s.outbound) == 0
		s.outbound = append(s.outbound, buf)
		if wasEmpty && !s.writing && s.conn != nil {
			s.writing = true
			s.doWrite()
		}
	})
}

// Close terminates the session and reports needReconnect to the disconnect
// handler. Only the first Close (or failure) has any effect.
func (s *Session) Close(needReconnect bool) {
	s.strand.post(func() {
		s.terminate(needReconnect, nil)
	})
}

// start dials the endpoint off the strand. onOpen runs on the strand once the
// socket is connected.
func (s *Session) start(ctx context.Context, dial DialFunc, onOpen func(*Session)) {
	s.strand.post(func() {
		if s.dead {
			return
		}

		var dctx context.Context
		var cancel context.CancelFunc
		if s.cfg.ConnectTimeout > 0 {
			dctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		} else {
			dctx, cancel = context.WithCancel(ctx)
		}
		s.cancelDial = cancel

		addr := string(s.key)
		s.logger.Debug("connecting")
		go func() {
			conn, err := dial(dctx, "tcp", addr)
			posted := s.strand.post(func() {
				s.connectDone(conn, err, onOpen)
			})
			if !posted && conn != nil {
				conn.Close()
			}
		}()
	})
}

func (s *Session) connectDone(conn net.Conn, err error, onOpen func(*Session)) {
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	if s.dead {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.terminate(true, fmt.Errorf("connect: %w", err))
		return
	}

	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, s.cfg.MaxFrameSize)
	s.state.Store(int32(StateActive))
	s.logger.Info("connected", "local_addr", conn.LocalAddr().String())

	if onOpen != nil {
		onOpen(s)
	}

	if len(s.outbound) > 0 && !s.writing {
		s.writing = true
		s.doWrite()
	}
}

func (s *Session) doWrite() {
	if s.dead || len(s.outbound) == 0 {
		s.writing = false
		return
	}

	msg := s.outbound[0]
	conn := s.conn
	timeout := s.cfg.WriteTimeout
	go func() {
		if timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		_, err := conn.Write(msg)
		s.strand.post(func() {
			s.writeDone(err)
		})
	}()
}

func (s *Session) writeDone(err error) {
	if s.dead {
		return
	}
	if err != nil {
		s.writing = false
		s.terminate(true, fmt.Errorf("write: %w", err))
		return
	}

	s.outbound[0] = nil
	s.outbound = s.outbound[1:]
	s.written.Add(1)
	s.doRead()
}

func (s *Session) doRead() {
	if s.dead {
		return
	}

	conn, reader := s.conn, s.reader
	timeout := s.cfg.ReadTimeout
	go func() {
		if timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(timeout))
		}
		line, err := reader.ReadSlice('\n')
		receivedAt := time.Now()

		var data []byte
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			err = ErrFrameLimit
		case err == nil:
			data = append([]byte(nil), bytes.TrimRight(line, "\r\n")...)
		}

		s.strand.post(func() {
			s.readDone(data, receivedAt, err)
		})
	}()
}

func (s *Session) readDone(data []byte, receivedAt time.Time, err error) {
	if s.dead {
		return
	}
	if err != nil {
		s.writing = false
		s.terminate(true, fmt.Errorf("read: %w", err))
		return
	}

	s.read.Add(1)
	if s.frames != nil {
		s.frames.HandleFrame(Frame{
			Key:        s.key,
			SessionID:  s.id,
			Data:       data,
			ReceivedAt: receivedAt,
		})
	}
	s.doWrite()
}

// terminate is the single exit from every state. The dead check-and-set comes
// first so the disconnect handler fires at most once.
func (s *Session) terminate(needReconnect bool, cause error) {
	if s.dead {
		return
	}
	s.dead = true
	s.state.Store(int32(StateTerminated))

	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	if s.conn != nil {
		s.conn.Close()
	}
	dropped := len(s.outbound)
	s.outbound = nil

	if cause != nil {
		s.logger.Warn("session terminated",
			"err", cause,
			"reconnect", needReconnect,
			"dropped", dropped,
		)
	} else {
		s.logger.Info("session closed",
			"reconnect", needReconnect,
			"dropped", dropped,
		)
	}

	s.strand.stop()
	if s.onClose != nil {
		s.onClose.SessionClosed(s.key, s.id, needReconnect)
	}
}

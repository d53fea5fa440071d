package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/sourcegraph/conc"
)

// Server echoes newline-delimited lines back to every client.
type Server struct {
	Prefix    string
	DropAfter int // close the connection after this many lines; 0 = never
	Logger    *slog.Logger

	accepted atomic.Int64
	lines    atomic.Int64
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// every open connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	var wg conc.WaitGroup
	defer wg.Wait()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.accepted.Add(1)

		wg.Go(func() {
			s.handle(connCtx, conn)
		})
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	logger := s.Logger.With("remote", conn.RemoteAddr().String())
	logger.Info("peer connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		n++
		s.lines.Add(1)
		logger.Debug("line received", "line", line)

		if _, err := conn.Write([]byte(s.Prefix + line + "\n")); err != nil {
			logger.Warn("write failed", "err", err)
			return
		}
		if s.DropAfter > 0 && n >= s.DropAfter {
			logger.Info("dropping peer", "lines", n)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Warn("read failed", "err", err)
	}
	logger.Info("peer disconnected", "lines", n)
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Lines returns the number of lines echoed so far.
func (s *Server) Lines() int64 {
	return s.lines.Load()
}

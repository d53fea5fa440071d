// echopeer is a line-oriented TCP peer for exercising linkd by hand. Every
// line received is written back with a prefix. It can drop each connection
// after a number of lines to provoke reconnects.
//
// Usage: go run ./cmd/echopeer --addr 127.0.0.1:9000 --drop-after 5
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "echopeer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("echopeer", pflag.ContinueOnError)
	addr := flags.String("addr", "127.0.0.1:9000", "listen address")
	prefix := flags.String("prefix", "echo: ", "prefix added to each reply")
	dropAfter := flags.Int("drop-after", 0, "close each connection after this many lines (0 = never)")
	quiet := flags.BoolP("quiet", "q", false, "only log connection events")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelDebug
	if *quiet {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	logger.Info("echopeer listening", "addr", ln.Addr().String(), "drop_after", *dropAfter)

	srv := &Server{
		Prefix:    *prefix,
		DropAfter: *dropAfter,
		Logger:    logger,
	}
	return srv.Serve(ctx, ln)
}

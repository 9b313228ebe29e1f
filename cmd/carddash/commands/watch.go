package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	synchub "carddash/internal/sync"
)

const reconnectDelay = time.Second

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var (
		addr   string
		wsURL  string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print reload events from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			emit := printer(cmd.OutOrStdout(), pretty)
			connect := func(ctx context.Context) error { return synchub.Watch(ctx, addr, emit) }
			target := addr
			if wsURL != "" {
				connect = func(ctx context.Context) error { return synchub.WatchWS(ctx, wsURL, emit) }
				target = wsURL
			}

			return watchLoop(ctx, logger.Named("watch").With(zap.String("target", target)), connect)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "TCP sync server address")
	cmd.Flags().StringVar(&wsURL, "ws", "", "websocket URL, e.g. ws://localhost:8080/ws (overrides --addr)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	return cmd
}

// watchLoop reconnects after every disconnect until ctx is done.
func watchLoop(ctx context.Context, logger *zap.Logger, connect func(context.Context) error) error {
	for {
		logger.Info("connecting")
		err := connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("disconnected", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// printer writes each event on its own line, indented when pretty is set.
// Lines that are not JSON are printed as received.
func printer(w io.Writer, pretty bool) func([]byte) {
	return func(line []byte) {
		if !pretty {
			fmt.Fprintln(w, string(line))
			return
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, line, "", "  "); err != nil {
			fmt.Fprintln(w, string(line))
			return
		}
		fmt.Fprintln(w, buf.String())
	}
}

package sync

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
)

// Watch connects to a TCP sync server and calls fn for each line until ctx
// is done or the server disconnects.
func Watch(ctx context.Context, addr string, fn func(line []byte)) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fn(sc.Bytes())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return net.ErrClosed
}

// WatchWS is Watch for the websocket endpoint at url.
func WatchWS(ctx context.Context, url string, fn func(msg []byte)) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(msg)
	}
}

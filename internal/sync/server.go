package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server accepts TCP clients that receive events as newline-delimited JSON.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens on Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then closes ln and every TCP client and
// waits for their readers to exit.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Hub.logger.With(zap.String("transport", transportTCP))
	log.Info("listening", zap.Stringer("addr", ln.Addr()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer s.Hub.closeTCP()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("accept", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, _ = conn.Write(s.Hub.welcome(transportTCP))
		s.Hub.Add(conn)
		log.Info("client connected", zap.Stringer("remote", conn.RemoteAddr()))

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() {
				s.Hub.Remove(c)
				log.Info("client disconnected", zap.Stringer("remote", c.RemoteAddr()))
			}()

			// clients never send anything meaningful; drain until EOF
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

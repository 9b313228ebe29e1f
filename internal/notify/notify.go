// Package notify pushes reload events to UDP clients that registered with a
// datagram.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"carddash/internal/dashboard"
	synchub "carddash/internal/sync"
)

const (
	RegisterMessageType   = "register"
	UnregisterMessageType = "unregister"
)

const maxDatagram = 2048

var errMissingFields = errors.New("type and client_id are required")

// RegisterMessage is sent by clients to start or stop receiving events.
type RegisterMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type Client struct {
	ID   string
	Addr *net.UDPAddr
}

// Registry tracks registered clients by id; re-registering moves a client to
// its new address.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(id string, addr *net.UDPAddr) {
	if id == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[id] = Client{ID: id, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// RemoveAt removes id only while it is still registered at addr. It
// reports whether the client was removed.
func (r *Registry) RemoveAt(id string, addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok || !sameAddr(client.Addr, addr) {
		return false
	}
	delete(r.clients, id)
	return true
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port && a.Zone == b.Zone
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Server receives registrations and sends events from the same socket.
type Server struct {
	Addr     string
	Registry *Registry

	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Server{
		Addr:     addr,
		Registry: registry,
		logger:   logger.Named("notify"),
		now:      time.Now,
	}
}

// Run listens on Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, conn)
}

// Serve reads registrations from conn until ctx is done, then closes it.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	s.logger.Info("listening", zap.Stringer("addr", conn.LocalAddr()))

	buffer := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Debug("invalid message", zap.Stringer("remote", addr), zap.Error(err))
			continue
		}
		switch msg.Type {
		case RegisterMessageType:
			s.Registry.Register(msg.ClientID, addr)
			s.logger.Info("client registered", zap.String("client", msg.ClientID), zap.Stringer("remote", addr))
		case UnregisterMessageType:
			s.Registry.Remove(msg.ClientID)
			s.logger.Info("client unregistered", zap.String("client", msg.ClientID))
		}
	}
}

// OnReload is a dashboard observer sending the event to every client.
func (s *Server) OnReload(ev dashboard.ReloadEvent) {
	s.Broadcast(synchub.FromReload(ev, s.now()))
}

// Broadcast sends v as one JSON datagram to every client. A client that
// fails twice in a row is dropped.
func (s *Server) Broadcast(v any) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		s.logger.Debug("not running, dropping event")
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal event", zap.Error(err))
		return
	}

	for _, client := range s.Registry.Snapshot() {
		s.sendWithRetry(conn, client, payload)
	}
}

func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if _, err := conn.WriteToUDP(payload, client.Addr); err == nil {
		return
	}
	if _, err := conn.WriteToUDP(payload, client.Addr); err != nil {
		// the client may have re-registered from another address meanwhile
		if s.Registry.RemoveAt(client.ID, client.Addr) {
			s.logger.Warn("dropping client", zap.String("client", client.ID), zap.Stringer("remote", client.Addr), zap.Error(err))
		}
	}
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ClientID == "" || msg.Type == "" {
		return msg, errMissingFields
	}
	return msg, nil
}

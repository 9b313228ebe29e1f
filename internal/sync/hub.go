package sync

import (
	"bufio"
	"encoding/json"
	"maps"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"carddash/internal/dashboard"
)

const writeTimeout = 2 * time.Second

// Hub fans events out to every connected TCP and websocket client. Each
// client has its own write lock; h.mu only guards the client sets.
type Hub struct {
	mu           sync.Mutex
	clients      map[net.Conn]*sync.Mutex
	wsClients    map[*websocket.Conn]*sync.Mutex
	logger       *zap.Logger
	now          func() time.Time
	writeTimeout time.Duration
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:      make(map[net.Conn]*sync.Mutex),
		wsClients:    make(map[*websocket.Conn]*sync.Mutex),
		logger:       logger.Named("sync"),
		now:          time.Now,
		writeTimeout: writeTimeout,
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = &sync.Mutex{}
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// OnReload is a dashboard observer that broadcasts every reload attempt.
func (h *Hub) OnReload(ev dashboard.ReloadEvent) {
	h.BroadcastJSON(FromReload(ev, h.now().UTC()))
}

// BroadcastJSON writes v as one JSON line to every client. Writes run
// concurrently outside h.mu. Clients that fail to accept the line are dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.Error(err))
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	tcp := maps.Clone(h.clients)
	ws := maps.Clone(h.wsClients)
	h.mu.Unlock()

	var wg sync.WaitGroup
	for c, mu := range tcp {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			err := h.writeTCP(c, b)
			mu.Unlock()
			if err != nil {
				h.logger.Debug("dropping tcp client", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
				h.Remove(c)
			}
		}()
	}
	for conn, mu := range ws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err := conn.WriteMessage(websocket.TextMessage, b)
			mu.Unlock()
			if err != nil {
				h.logger.Debug("dropping websocket client", zap.Error(err))
				h.RemoveWS(conn)
			}
		}()
	}
	wg.Wait()
}

func (h *Hub) writeTCP(c net.Conn, b []byte) error {
	_ = c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	w := bufio.NewWriter(c)
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.Flush()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) + len(h.wsClients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.closeTCP()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.wsClients {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}

func (h *Hub) closeTCP() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) welcome(transport string) []byte {
	b, _ := json.Marshal(Welcome{Type: TypeWelcome, Transport: transport, Clients: h.Count()})
	return append(b, '\n')
}

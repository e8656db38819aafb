// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package webview

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/siemens/pinginfo/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientWriteTimeout bounds how long a broadcast may block on a single
// websocket client before the client gets dropped.
const clientWriteTimeout = 5 * time.Second

// wsclient wraps a websocket connection with its own write lock: gorilla
// websocket connections support only a single concurrent writer, yet both
// the greeting on connect and the round broadcasts want to write.
type wsclient struct {
	mu   sync.Mutex // serializes writes to conn
	conn *websocket.Conn
}

// sendJSON writes the specified value as JSON onto the client's connection,
// bounded by the write timeout; concurrent senders get serialized.
func (c *wsclient) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	return c.conn.WriteJSON(v)
}

// Server presents round snapshots to web clients: the latest snapshot via a
// plain JSON endpoint as well as pushed over websockets as rounds complete.
type Server struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	latest  *types.Snapshot
	clients map[*wsclient]struct{}
}

// NewServer returns a web presenter reporting to the specified logger.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:     log,
		clients: map[*wsclient]struct{}{},
	}
}

// Present stores the specified snapshot as the latest state and pushes it to
// all connected websocket clients, dropping clients it cannot keep up with.
// It satisfies the sweep presenter contract.
func (s *Server) Present(snapshot types.Snapshot) {
	s.mu.Lock()
	s.latest = &snapshot
	clients := make([]*wsclient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()
	for _, client := range clients {
		if err := client.sendJSON(snapshot); err != nil {
			s.log.Debug("dropping websocket client", zap.Error(err))
			s.drop(client)
		}
	}
}

// Handler returns the presenter's HTTP routes: the live page itself, the
// latest snapshot as JSON, and the websocket snapshot stream.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if latest == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		s.log.Debug("cannot encode snapshot", zap.Error(err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsclient{conn: conn}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	latest := s.latest
	s.mu.Unlock()
	// Greet the fresh client with the latest snapshot; the client's write
	// lock keeps the greeting from interleaving with a concurrent round
	// broadcast onto the same connection.
	if latest != nil {
		if err := client.sendJSON(*latest); err != nil {
			s.drop(client)
			return
		}
	}
	// Reading is only needed to notice the client going away; incoming
	// payloads are of no interest.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(client)
				return
			}
		}
	}()
}

// drop unregisters and closes a websocket client connection; dropping an
// already-dropped client is harmless.
func (s *Server) drop(client *wsclient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	client.conn.Close()
}

// Close drops all connected websocket clients.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*wsclient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clients = map[*wsclient]struct{}{}
	s.mu.Unlock()
	for _, client := range clients {
		client.conn.Close()
	}
}

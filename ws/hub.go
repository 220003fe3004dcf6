// server/ws/hub.go
package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/metrics"
	"github.com/vinizap/memo/server/projection"
)

// Hub tracks connected sessions so they can be counted and shut down.
type Hub struct {
	source       projection.Source
	defaultQuery livequery.Query
	log          zerolog.Logger

	sessions   map[*Session]bool
	register   chan *Session
	unregister chan *Session
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub(source projection.Source, defaultQuery livequery.Query, log zerolog.Logger) *Hub {
	return &Hub{
		source:       source,
		defaultQuery: defaultQuery,
		log:          log.With().Str("component", "ws_hub").Logger(),
		sessions:     make(map[*Session]bool),
		register:     make(chan *Session),
		unregister:   make(chan *Session),
		done:         make(chan struct{}),
	}
}

// Run serves register/unregister requests until ctx is done, then closes
// every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			h.mu.Unlock()
			metrics.Sessions.Inc()
			h.log.Info().Str("session_id", s.ID()).Msg("client subscribed")

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				metrics.Sessions.Dec()
			}
			h.mu.Unlock()
			s.Close()

		case <-ctx.Done():
			h.mu.Lock()
			sessions := h.sessions
			h.sessions = make(map[*Session]bool)
			h.mu.Unlock()
			for s := range sessions {
				metrics.Sessions.Dec()
				s.Close()
			}
			h.log.Info().Int("sessions", len(sessions)).Msg("hub stopped")
			return
		}
	}
}

// Serve runs a session for conn and blocks until it ends.
func (h *Hub) Serve(conn Conn) {
	s := NewSession(conn, h.source, h.defaultQuery, h.log)

	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}
	defer h.Unregister(s)

	s.Serve()
}

func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
		s.Close()
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// server/ws/session.go
package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/memo"
	"github.com/vinizap/memo/server/projection"
)

const writeWait = 10 * time.Second

// Conn is the part of a websocket connection a session needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Event types sent to clients.
const (
	EventItemInserted   = "item_inserted"
	EventItemChanged    = "item_changed"
	EventItemMoved      = "item_moved"
	EventItemRemoved    = "item_removed"
	EventDataSetChanged = "dataset_changed"
	EventBatchComplete  = "batch_complete"
	EventError          = "error"
)

type Event struct {
	Type     string       `json:"type"`
	Position *int         `json:"position,omitempty"`
	From     *int         `json:"from,omitempty"`
	To       *int         `json:"to,omitempty"`
	ID       string       `json:"id,omitempty"`
	Memo     *domain.Memo `json:"memo,omitempty"`
	Count    *int         `json:"count,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// ClientMessage is what clients send: "query" (with list options), "start"
// or "stop".
type ClientMessage struct {
	Type string `json:"type"`
	memo.ListOptions
}

// Session is one websocket client watching a live memo list.
type Session struct {
	id      string
	conn    Conn
	adapter *projection.Adapter
	log     zerolog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

func NewSession(conn Conn, source projection.Source, q livequery.Query, log zerolog.Logger) *Session {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
	}
	s.log = log.With().Str("component", "ws_session").Str("session_id", s.id).Logger()
	s.adapter = projection.NewAdapter(source, q, s,
		projection.WithLogger(s.log),
		projection.WithErrorHook(func(err error) {
			s.log.Warn().Err(err).Msg("live query error")
			s.send(Event{Type: EventError, Message: err.Error()})
		}),
	)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Adapter() *projection.Adapter { return s.adapter }

// Serve starts the live list and handles client messages until the
// connection fails or is closed.
func (s *Session) Serve() {
	defer s.Close()

	s.adapter.StartListening()
	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !s.closed.Load() {
				s.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg ClientMessage) {
	switch msg.Type {
	case "query":
		q, err := msg.ListOptions.Query()
		if err != nil {
			s.send(Event{Type: EventError, Message: err.Error()})
			return
		}
		s.log.Debug().Str("query", q.Key()).Msg("client changed query")
		s.adapter.SetQuery(q)
	case "start":
		s.adapter.StartListening()
	case "stop":
		s.adapter.StopListening()
	default:
		s.send(Event{Type: EventError, Message: "unknown message type " + msg.Type})
	}
}

// Close stops the live query and closes the connection. It is safe to call
// more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.adapter.StopListening()
	s.conn.Close()
}

func (s *Session) send(ev Event) {
	if s.closed.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Type).Msg("websocket write error")
		// Unblocks the read loop, which then closes the session.
		s.conn.Close()
	}
}

func (s *Session) decode(doc *livequery.DocumentSnapshot) *domain.Memo {
	m, err := domain.DecodeMemo(doc)
	if err != nil {
		s.log.Warn().Err(err).Msg("sending undecodable memo as empty row")
		return nil
	}
	return m
}

func (s *Session) ItemInserted(position int, doc *livequery.DocumentSnapshot) {
	s.send(Event{Type: EventItemInserted, Position: &position, ID: doc.ID, Memo: s.decode(doc)})
}

func (s *Session) ItemChanged(position int, doc *livequery.DocumentSnapshot) {
	s.send(Event{Type: EventItemChanged, Position: &position, ID: doc.ID, Memo: s.decode(doc)})
}

func (s *Session) ItemMoved(from, to int, doc *livequery.DocumentSnapshot) {
	s.send(Event{Type: EventItemMoved, From: &from, To: &to, ID: doc.ID, Memo: s.decode(doc)})
}

func (s *Session) ItemRemoved(position int) {
	s.send(Event{Type: EventItemRemoved, Position: &position})
}

func (s *Session) DataSetChanged(reason string) {
	s.send(Event{Type: EventDataSetChanged, Reason: reason})
}

func (s *Session) BatchComplete(count int) {
	s.send(Event{Type: EventBatchComplete, Count: &count})
}

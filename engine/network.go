package engine

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// spectator is one connected real-time-channel client. Spectators
// never send steering commands (spec.md §6: "no inbound commands on
// this channel"); the read pump exists only to detect disconnect and
// to answer ping/pong keepalive.
type spectator struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

// broadcaster owns the spectator connection set and fans out events.
// Its mutation is serialized by a mutex rather than the HTTP layer's
// connection lifecycle alone, since gorilla/websocket's Upgrade can be
// called concurrently from multiple request goroutines (spec.md §5
// "Spectator connection set is owned by the broadcast component").
type broadcaster struct {
	mu         sync.RWMutex
	spectators map[*spectator]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{spectators: make(map[*spectator]struct{})}
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.spectators)
}

type wireEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func (b *broadcaster) send(event string, payload interface{}) {
	msg := wireEvent{Event: event, Data: payload}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.spectators {
		select {
		case s.sendCh <- data:
		default:
			// Buffer full: drop this frame for this spectator rather
			// than block the broadcast (spec.md §5 backpressure).
		}
	}
}

func (b *broadcaster) register(s *spectator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spectators[s] = struct{}{}
}

func (b *broadcaster) unregister(s *spectator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.spectators, s)
}

// HandleSpectatorWS upgrades the connection and joins it to the
// broadcast set until it disconnects.
func (g *Game) HandleSpectatorWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("event", "ws_upgrade_failed").Msg("spectator upgrade failed")
		return
	}

	s := &spectator{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	g.broadcast.register(s)
	g.log.Info().Str("event", "spectator_connected").Int("count", g.broadcast.count()).Msg("spectator connected")

	go s.writePump()
	s.readPump()

	close(s.done)
	g.broadcast.unregister(s)
	conn.Close()
	g.log.Info().Str("event", "spectator_disconnected").Int("count", g.broadcast.count()).Msg("spectator disconnected")
}

func (s *spectator) readPump() {
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *spectator) writePump() {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case msg, ok := <-s.sendCh:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pingTicker.C:
			s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

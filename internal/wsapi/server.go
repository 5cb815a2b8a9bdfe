// Package wsapi exposes the state broadcaster and action dispatcher over
// a WebSocket: each connected subscriber receives the published state
// schema and may send action messages back.
package wsapi

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/directpipe/host/internal/control"
)

// Server upgrades incoming connections to WebSocket and fans the current
// state out to every subscriber whenever it changes.
type Server struct {
	broadcaster *control.Broadcaster
	dispatcher  *control.Dispatcher

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// New returns a Server that publishes snapshots from broadcaster and
// forwards decoded actions to dispatcher.
func New(broadcaster *control.Broadcaster, dispatcher *control.Dispatcher) *Server {
	s := &Server{
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		clients:     make(map[*websocket.Conn]chan []byte),
	}
	broadcaster.AddListener(control.StateListenerFunc(s.onStateChanged))
	return s
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// HandleUpgrade upgrades r into a WebSocket connection, sends the current
// snapshot, then services writes and reads until the connection closes.
func (s *Server) HandleUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[wsapi] upgrade failed: %v", err)
		return
	}
	s.serve(ctx, conn)
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	outbox := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = outbox
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	if snapshot, err := s.broadcaster.ToJSON(); err == nil {
		select {
		case outbox <- snapshot:
		default:
		}
	}

	done := make(chan struct{})
	go s.writeLoop(conn, outbox, done)
	s.readLoop(ctx, conn)
	close(done)
}

func (s *Server) writeLoop(conn *websocket.Conn, outbox <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-outbox:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		event, err := control.ParseActionMessage(raw)
		if err != nil {
			continue // unrecognized action names are silently ignored
		}
		s.dispatcher.Dispatch(event)
	}
}

func (s *Server) onStateChanged(state control.AppState) {
	data, err := state.ToJSON()
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, outbox := range s.clients {
		select {
		case outbox <- data:
		default:
			log.Printf("[wsapi] subscriber %s outbox full, dropping update", conn.RemoteAddr())
		}
	}
}

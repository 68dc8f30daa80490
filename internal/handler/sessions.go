package handler

import (
	"sync"

	"github.com/gorilla/websocket"
)

// StreamSessions tracks hijacked stream connections, which http.Server.Shutdown
// does not wait for, so they can be closed when the server stops.
type StreamSessions struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewStreamSessions() *StreamSessions {
	return &StreamSessions{conns: make(map[*websocket.Conn]struct{})}
}

func (s *StreamSessions) add(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *StreamSessions) remove(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Count returns the number of open stream sessions.
func (s *StreamSessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseAll closes every open session; their handlers then finish on the read error.
func (s *StreamSessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

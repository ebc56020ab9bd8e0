// Package realtime fans swap events out to in-process subscribers such as
// websocket sessions. A failing subscriber never aborts the broadcast to the
// others.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/evswap/stationd/core/logger"
)

// Session is one connected subscriber handle.
type Session interface {
	Send(payload []byte) error
}

// Hub is a concurrency-safe registry of sessions keyed by topic. It
// implements the notifier interface: Publish encodes the event as JSON and
// delivers it to every session subscribed to the topic. Sessions whose Send
// fails are dropped, mirroring a disconnect.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Session]struct{}
	log      logger.Logger
	closed   bool
}

// NewHub creates an empty hub. log may be nil.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop{}
	}
	return &Hub{sessions: make(map[string]map[Session]struct{}), log: log}
}

// Subscribe registers the session for the topic.
func (h *Hub) Subscribe(topic string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.sessions[topic] == nil {
		h.sessions[topic] = make(map[Session]struct{})
	}
	h.sessions[topic][s] = struct{}{}
}

// Unsubscribe removes the session from the topic.
func (h *Hub) Unsubscribe(topic string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, topic)
		}
	}
}

// Publish delivers the event to all sessions subscribed to the topic.
func (h *Hub) Publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	targets := make([]Session, 0, len(h.sessions[topic]))
	for s := range h.sessions[topic] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			h.log.Warnf("realtime: dropping subscriber on %s: %v", topic, err)
			h.Unsubscribe(topic, s)
		}
	}
	return nil
}

// Close drops all sessions and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.sessions = make(map[string]map[Session]struct{})
	h.mu.Unlock()
}

// ChanSession adapts a channel into a Session. Delivery is non-blocking: a
// full channel drops the payload rather than stalling the broadcast.
type ChanSession struct {
	C chan []byte
}

// NewChanSession returns a session buffering up to n payloads.
func NewChanSession(n int) *ChanSession {
	return &ChanSession{C: make(chan []byte, n)}
}

// Send enqueues the payload, dropping it when the buffer is full.
func (s *ChanSession) Send(payload []byte) error {
	select {
	case s.C <- payload:
	default:
	}
	return nil
}

package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"hgigs/core/events"
	"hgigs/services/eventlog"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

type streamMessage struct {
	Seq        uint64            `json:"seq,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Hub fans committed marketplace events out to websocket subscribers. Slow
// subscribers are dropped rather than blocking the engine.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan streamMessage
	logger *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[int]chan streamMessage), logger: logger}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	msg := streamMessage{Type: evt.EventType(), Attributes: map[string]string{}}
	if payload := events.Payload(evt); payload != nil {
		msg.Attributes = payload.Clone().Attributes
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("dropping slow event subscriber", slog.Int("subscriber", id))
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel function must be
// called once the subscriber stops reading.
func (h *Hub) Subscribe() (<-chan streamMessage, func()) {
	ch := make(chan streamMessage, subscriberBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if existing, ok := h.subs[id]; ok {
				close(existing)
				delete(h.subs, id)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleEventsWS streams journal backlog after the optional "after" cursor,
// then live events. Delivery is at-least-once around the backlog boundary.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "event stream disabled")
		return
	}
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "after must be an unsigned integer")
			return
		}
		after = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, after); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, after uint64) error {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	if s.journal != nil && after > 0 {
		backlog, err := s.journal.List(ctx, after, eventlog.MaxPageSize)
		if err != nil {
			return err
		}
		for _, entry := range backlog {
			msg := streamMessage{Seq: entry.Seq, Type: entry.Type, Attributes: entry.Attributes}
			if err := writeStreamMessage(ctx, conn, msg); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
			}
			if err := writeStreamMessage(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeStreamMessage(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

var _ events.Emitter = (*Hub)(nil)

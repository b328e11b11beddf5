package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"lendchain/core/events"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 64
)

// eventEnvelope is the wire form pushed to websocket subscribers.
type eventEnvelope struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Slot    uint64       `json:"slot"`
	Emitted time.Time    `json:"emitted"`
	Payload events.Event `json:"payload"`
}

// EventHub fans engine events out to websocket subscribers. It implements
// events.Emitter so it can be wired straight into the engine; a slow or dead
// subscriber is dropped rather than allowed to stall the emit path.
type EventHub struct {
	logger *slog.Logger
	clock  SlotClock

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewEventHub(clock SlotClock, logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		logger: logger,
		clock:  clock,
		subs:   make(map[chan []byte]struct{}),
	}
}

// Emit serializes the event and broadcasts it. Encoding failures are logged
// and skipped so a bad payload cannot poison the engine's write path.
func (h *EventHub) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	envelope := eventEnvelope{
		ID:      uuid.NewString(),
		Type:    evt.EventType(),
		Slot:    h.clock(),
		Emitted: time.Now().UTC(),
		Payload: evt,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Warn("event encode failed", "type", evt.EventType(), "error", err)
		return
	}

	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- raw:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}

func (h *EventHub) subscribe() chan []byte {
	ch := make(chan []byte, wsSendBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// HandleWS upgrades the connection and streams events until the client goes
// away or a write fails.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	ctx := r.Context()

	// Drain and discard client frames so pings and close frames are handled.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, raw)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

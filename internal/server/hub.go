package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to a spectator.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from a spectator.
	pongWait = 60 * time.Second

	// Ping cadence; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Spectators are read-only; anything beyond a control frame is noise.
	maxMessageSize = 512

	// Per-connection send buffer. A spectator that falls this far behind
	// is dropped rather than stalling the table.
	sendBuffer = 16
)

// Hub fans whole-state snapshots out to the spectators of one room. It
// implements session.Broadcaster, so every session mutation reaches every
// connected viewer.
type Hub struct {
	logger *log.Logger
	clock  quartz.Clock

	mu    sync.Mutex
	conns map[*spectator]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger, clock quartz.Clock) *Hub {
	return &Hub{
		logger: logger.WithPrefix("hub"),
		clock:  clock,
		conns:  make(map[*spectator]struct{}),
	}
}

// Publish sends a snapshot to every connected spectator. Slow consumers are
// disconnected; the authoritative state lives in the session, so a viewer
// that reconnects simply receives the latest snapshot.
func (h *Hub) Publish(_ context.Context, _ string, snapshot []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		select {
		case c.send <- snapshot:
		default:
			h.logger.Warn("dropping slow spectator", "remote", c.ws.RemoteAddr())
			delete(h.conns, c)
			c.close()
		}
	}
}

// Count returns the number of connected spectators.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Attach registers a websocket as a read-only spectator, queues the given
// snapshot as its first message, and starts its pumps.
func (h *Hub) Attach(ws *websocket.Conn, snapshot []byte) {
	c := &spectator{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	c.send <- snapshot

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump(h.clock)
	go h.readPump(c)
}

// Close disconnects every spectator.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		delete(h.conns, c)
		c.close()
	}
}

// detach removes a spectator after its read side failed.
func (h *Hub) detach(c *spectator) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.close()
}

// readPump drains inbound frames. Spectators never send application
// messages; the read loop exists to process pongs and detect disconnects.
func (h *Hub) readPump(c *spectator) {
	defer h.detach(c)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// spectator is one read-only websocket viewer.
type spectator struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *spectator) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump serializes all writes: snapshots from the hub and periodic
// pings from the injected clock.
func (c *spectator) writePump(clock quartz.Clock) {
	ticker := clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case snapshot := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, snapshot); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

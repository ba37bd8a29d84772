/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// FrameMessage carries the show stage to viewers.
type FrameMessage struct {
	Type  string `json:"type"` // "frame"
	Frame Frame  `json:"frame"`
}

// CountMessage carries the current number of suggestions.
type CountMessage struct {
	Type  string `json:"type"` // "count"
	Count int64  `json:"count"`
}

type liveClient struct {
	conn *websocket.Conn
	send chan any
}

// Hub fans show frames and counts out to every connected viewer. The run
// goroutine owns the client set; the latest messages are kept so that a new
// viewer starts from the current state.
type Hub struct {
	clients map[*liveClient]bool

	register  chan *liveClient
	unreg     chan *liveClient
	broadcast chan any
	done      chan struct{}

	mu        sync.RWMutex
	lastFrame *FrameMessage
	lastCount *CountMessage
}

func newHub() *Hub {
	return &Hub{
		clients:   make(map[*liveClient]bool),
		register:  make(chan *liveClient),
		unreg:     make(chan *liveClient),
		broadcast: make(chan any, 64),
		done:      make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

			h.mu.RLock()
			frame, count := h.lastFrame, h.lastCount
			h.mu.RUnlock()

			if count != nil {
				h.sendTo(c, *count)
			}
			if frame != nil {
				h.sendTo(c, *frame)
			}

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.sendTo(c, msg)
			}

		case <-h.done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// sendTo drops a client whose buffer is full rather than stalling the hub.
func (h *Hub) sendTo(c *liveClient, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) close() {
	close(h.done)
}

func (h *Hub) publish(msg any) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) PublishFrame(f Frame) {
	msg := FrameMessage{Type: "frame", Frame: f}

	h.mu.Lock()
	h.lastFrame = &msg
	h.mu.Unlock()

	h.publish(msg)
}

func (h *Hub) PublishCount(n int64) {
	msg := CountMessage{Type: "count", Count: n}

	h.mu.Lock()
	h.lastCount = &msg
	h.mu.Unlock()

	h.publish(msg)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveLive(cfg *Config, hub *Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errs <- err

			return
		}

		client := &liveClient{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()

			return
		}

		logf(cfg, "SERVE: Live viewer connected from %s", realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

// readPump only watches for the connection closing; viewers never send
// anything meaningful.
func (c *liveClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package web renders the booth shell over websockets. Every shell cue is
// broadcast as a JSON event; clients joining late receive a snapshot of the
// visible screens and theme first.
package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"photobooth/internal/booth"
	"photobooth/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Event is one message sent to kiosk clients.
type Event struct {
	Type       string         `json:"type"`
	Screen     booth.Screen   `json:"screen,omitempty"`
	Screens    []booth.Screen `json:"screens,omitempty"`
	Theme      string         `json:"theme,omitempty"`
	N          int            `json:"n,omitempty"`
	Total      int            `json:"total,omitempty"`
	Text       string         `json:"text,omitempty"`
	Photos     []string       `json:"photos,omitempty"`
	Grayscale  bool           `json:"grayscale,omitempty"`
	CanProceed bool           `json:"canProceed,omitempty"`
	Options    []string       `json:"options,omitempty"`
	Strip      string         `json:"strip,omitempty"`
	Filename   string         `json:"filename,omitempty"`
	Reveal     string         `json:"reveal,omitempty"`
}

// Hub fans shell events out to connected clients. It implements booth.Shell.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.Mutex
	visible map[booth.Screen]bool
	theme   string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns a hub. Run must be started before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			// The kiosk page is served from the same local process.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		visible:    make(map[booth.Screen]bool),
	}
}

// Run dispatches events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			c.send <- h.snapshot()
			h.log.Debug("kiosk client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug("kiosk client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("kiosk client too slow, dropped")
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) snapshot() []byte {
	h.mu.Lock()
	ev := Event{Type: "snapshot", Theme: h.theme}
	for _, s := range booth.Screens {
		if h.visible[s] {
			ev.Screens = append(ev.Screens, s)
		}
	}
	h.mu.Unlock()
	data, _ := json.Marshal(ev)
	return data
}

// publish never blocks; shell cues are issued while the booth holds its lock.
func (h *Hub) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode kiosk event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("kiosk event dropped", "type", ev.Type)
	}
}

func (h *Hub) Show(s booth.Screen) {
	h.mu.Lock()
	h.visible[s] = true
	h.mu.Unlock()
	h.publish(Event{Type: "show", Screen: s})
}

func (h *Hub) Hide(s booth.Screen) {
	h.mu.Lock()
	delete(h.visible, s)
	h.mu.Unlock()
	h.publish(Event{Type: "hide", Screen: s})
}

func (h *Hub) Theme(m session.Mode) {
	h.mu.Lock()
	h.theme = m.Theme()
	h.mu.Unlock()
	h.publish(Event{Type: "theme", Theme: m.Theme()})
}

func (h *Hub) Countdown(n int) { h.publish(Event{Type: "countdown", N: n}) }

func (h *Hub) HideCountdown() { h.publish(Event{Type: "countdown-hide"}) }

func (h *Hub) Counter(n, total int) {
	h.publish(Event{Type: "counter", N: n, Total: total, Text: booth.CounterText(n, total)})
}

func (h *Hub) Flash() { h.publish(Event{Type: "flash"}) }

// Shutter asks clients to play the shutter sound. Delivery is best effort.
func (h *Hub) Shutter() error {
	h.publish(Event{Type: "shutter"})
	return nil
}

func (h *Hub) Alert(msg string) { h.publish(Event{Type: "alert", Text: msg}) }

func (h *Hub) ResetUpload() { h.publish(Event{Type: "reset-upload"}) }

func (h *Hub) Preview(p booth.Preview) {
	ev := Event{
		Type:       "preview",
		Screen:     p.Screen,
		Grayscale:  p.Grayscale,
		CanProceed: p.CanProceed,
		Options:    p.Options,
	}
	for _, photo := range p.Photos {
		ev.Photos = append(ev.Photos, dataURL(photo))
	}
	h.publish(ev)
}

func (h *Hub) Result(r booth.Result) {
	ev := Event{Type: "result", Reveal: r.Reveal}
	if r.Artifact != nil {
		ev.Strip = r.Artifact.ID
		ev.Filename = r.Artifact.Filename
	}
	h.publish(ev)
}

func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

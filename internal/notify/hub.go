// Package notify fans committed turns out to listeners: websocket clients
// watching a campaign and a Redis channel for other processes.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/talgya/chronicle/internal/turn"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// ErrHubBacklog means the hub could not accept another broadcast.
var ErrHubBacklog = errors.New("hub broadcast backlog full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the wire message sent to stream clients.
type Envelope struct {
	Type       string `json:"type"`
	CampaignID string `json:"campaign_id"`
	Data       any    `json:"data,omitempty"`
	Time       int64  `json:"time"`
}

type client struct {
	id         string
	campaignID string
	conn       *websocket.Conn
	send       chan []byte
	hub        *Hub
}

type broadcast struct {
	campaignID string
	data       []byte
}

// Hub keeps websocket clients grouped by campaign. Only Run touches the
// client sets.
type Hub struct {
	rooms      map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan broadcast
	clients    *atomic.Int64
	sent       *atomic.Int64
	log        *slog.Logger
}

// NewHub returns a hub; start it with Run.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*client]struct{}),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan broadcast, 256),
		clients:    atomic.NewInt64(0),
		sent:       atomic.NewInt64(0),
		log:        log,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			h.rooms = map[string]map[*client]struct{}{}
			h.clients.Store(0)
			return

		case c := <-h.register:
			room := h.rooms[c.campaignID]
			if room == nil {
				room = make(map[*client]struct{})
				h.rooms[c.campaignID] = room
			}
			room[c] = struct{}{}
			h.clients.Inc()
			if hello, err := envelope("connected", c.campaignID, map[string]string{"client_id": c.id}); err == nil {
				c.send <- hello
			}
			go c.writePump()
			h.log.Debug("stream client connected", "campaign", c.campaignID, "client", c.id, "total", h.clients.Load())

		case c := <-h.unregister:
			room := h.rooms[c.campaignID]
			if _, ok := room[c]; !ok {
				continue
			}
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.campaignID)
			}
			close(c.send)
			h.clients.Dec()
			h.log.Debug("stream client disconnected", "campaign", c.campaignID, "client", c.id, "total", h.clients.Load())

		case b := <-h.broadcast:
			for c := range h.rooms[b.campaignID] {
				select {
				case c.send <- b.data:
					h.sent.Inc()
				default:
					h.log.Warn("stream client backlog full", "campaign", b.campaignID, "client", c.id)
				}
			}
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to a campaign.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, campaignID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		id:         uuid.NewString(),
		campaignID: campaignID,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		hub:        h,
	}
	h.register <- c
	go c.readPump()
}

// TurnCommitted broadcasts a turn summary to the campaign's clients.
func (h *Hub) TurnCommitted(_ context.Context, s turn.Summary) error {
	data, err := envelope("turn", s.CampaignID, s)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- broadcast{campaignID: s.CampaignID, data: data}:
		return nil
	default:
		return ErrHubBacklog
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int64 { return h.clients.Load() }

// Sent returns how many messages were queued to clients.
func (h *Hub) Sent() int64 { return h.sent.Load() }

func envelope(kind, campaignID string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: kind, CampaignID: campaignID, Data: data, Time: time.Now().Unix()})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; clients do not send turns here.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("stream client closed", "client", c.id, "error", err)
			}
			return
		}
	}
}

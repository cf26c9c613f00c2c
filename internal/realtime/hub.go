package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
)

// Hub maintains the set of connected feed clients and fans change events
// out to the ones whose topic filter matches. Slow clients are dropped
// rather than allowed to stall the broadcast loop.
type Hub struct {
	lg         *logger.Logger
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan domain.ChangeEvent
	clients    map[*hubClient]bool
	done       chan struct{} // closed when Run returns
	presence   *Presence
}

type hubClient struct {
	conn    *websocket.Conn
	send    chan WireMessage
	topics  map[string]bool // empty means everything
	untrack []func()
}

func NewHub(lg *logger.Logger) *Hub {
	return &Hub{
		lg:         lg,
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan domain.ChangeEvent, 256),
		clients:    make(map[*hubClient]bool),
		done:       make(chan struct{}),
	}
}

// SetPresence makes the hub record each client's subscribed topics as
// presence entries for the lifetime of the connection.
func (h *Hub) SetPresence(p *Presence) { h.presence = p }

// Broadcast queues an event for delivery to every matching client.
func (h *Hub) Broadcast(ev domain.ChangeEvent) {
	h.broadcast <- ev
}

// Run owns the client set until ctx is cancelled; on shutdown every client
// receives a CLOSED status frame before its connection is dropped.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				select {
				case c.send <- WireMessage{Type: MsgStatus, Status: AckClosed}:
				default:
				}
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.lg.Info("feed_client_connected", map[string]any{"total": len(h.clients)})
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.lg.Info("feed_client_disconnected", map[string]any{"total": len(h.clients)})
		case ev := <-h.broadcast:
			msg := WireMessage{Type: MsgEvent, Event: &ev}
			for c := range h.clients {
				if !c.matches(ev) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// slow consumer: drop it instead of blocking the hub
					delete(h.clients, c)
					close(c.send)
					h.lg.Warn("feed_client_dropped", map[string]any{"total": len(h.clients)})
				}
			}
		}
	}
}

func (c *hubClient) matches(ev domain.ChangeEvent) bool {
	if len(c.topics) == 0 || c.topics["*"] {
		return true
	}
	return c.topics[ev.Table] || c.topics[string(ev.Type)]
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// the feed is same-origin in production; the gateway sits behind the
	// app's reverse proxy
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades an HTTP request into a feed subscription. The client
// sends a subscribe frame naming its topics and receives a SUBSCRIBED
// acknowledgement before any events.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.lg.Error("feed_upgrade_failed", err, nil)
			return
		}
		c := &hubClient{conn: conn, send: make(chan WireMessage, 256), topics: map[string]bool{}}

		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		var sub WireMessage
		if err := readWire(conn, &sub); err != nil || sub.Type != MsgSubscribe {
			_ = conn.Close()
			return
		}
		for _, topic := range sub.Topics {
			c.topics[topic] = true
		}
		if err := writeWire(conn, WireMessage{Type: MsgStatus, Status: AckSubscribed}); err != nil {
			_ = conn.Close()
			return
		}

		if h.presence != nil {
			viewer := conn.RemoteAddr().String()
			for topic := range c.topics {
				c.untrack = append(c.untrack, h.presence.Track(topic, viewer))
			}
		}

		select {
		case h.register <- c:
		case <-h.done:
			_ = conn.Close()
			return
		}
		go c.writePump()
		go c.readPump(h)
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := writeWire(c.conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *hubClient) readPump(h *Hub) {
	defer func() {
		for _, fn := range c.untrack {
			fn()
		}
		select {
		case h.unregister <- c:
		case <-h.done: // Run already tore the client set down
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg WireMessage
		if err := readWire(c.conn, &msg); err != nil {
			return
		}
		if msg.Type == MsgPing {
			select {
			case c.send <- WireMessage{Type: MsgPong}:
			default:
			}
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func readWire(conn *websocket.Conn, msg *WireMessage) error {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, msg)
}

func writeWire(conn *websocket.Conn, msg WireMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

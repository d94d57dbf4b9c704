package docstore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 64
)

// Message types sent over a watch connection.
const (
	MessageValue = "value"
	MessageError = "error"
	MessagePing  = "ping"
	MessagePong  = "pong"
)

// Message is the envelope exchanged on watch connections.
type Message struct {
	Type     string          `json:"type"`
	Path     string          `json:"path,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Message  string          `json:"message,omitempty"`
	Revision int64           `json:"revision,omitempty"`
}

// Client is one watch connection bound to one path.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	owner    string
	segments []string
}

func (c *Client) path() string {
	return strings.Join(c.segments, "/")
}

// queue hands payload to the write pump. It reports false once the hub has dropped the client or the buffer is
// full. send is never closed, so readers and the hub may both call it.
func (c *Client) queue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// readPump drains the connection so control frames are processed, answering pings until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("watch connection error", "client", c.id, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MessagePing {
			continue
		}
		if pong, err := json.Marshal(Message{Type: MessagePong}); err == nil {
			c.queue(pong)
		}
	}
}

// writePump delivers queued messages one frame each and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// Hub tracks watch clients and pushes the current value of each watched path after every related mutation.
type Hub struct {
	tree       *Tree
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	changes    chan []string
	count      chan chan int
	done       chan struct{}
	stopped    chan struct{}
	logger     *log.Logger
}

// NewHub creates a hub reading values from tree. Call [Hub.Run] to start it.
func NewHub(tree *Tree, logger *log.Logger) *Hub {
	return &Hub{
		tree:       tree,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changes:    make(chan []string, 64),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns after [Hub.Close].
func (h *Hub) Run() {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("watch client connected", "client", client.id, "path", client.path())
			h.deliver(client)
		case client := <-h.unregister:
			h.drop(client)
		case changed := <-h.changes:
			for client := range h.clients {
				if Related(client.segments, changed) {
					h.deliver(client)
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Notify reports a mutation at the given path.
func (h *Hub) Notify(segments []string) {
	select {
	case h.changes <- segments:
	case <-h.done:
	}
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	<-h.stopped
}

// Clients returns the number of connected watchers.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
	h.logger.Debug("watch client disconnected", "client", c.id)
}

// deliver queues the current value at the client's path. Slow clients are disconnected.
func (h *Hub) deliver(c *Client) {
	msg := Message{Type: MessageValue, Path: c.path(), Data: json.RawMessage("null")}

	data, ok, err := h.tree.Get(c.segments)
	switch {
	case err != nil:
		msg = Message{Type: MessageError, Path: c.path(), Message: err.Error()}
	case ok:
		msg.Data = data
	}
	msg.Revision = h.tree.Revision()

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode watch message", "error", err)
		return
	}

	if !c.queue(payload) {
		h.logger.Warn("watch client too slow, disconnecting", "client", c.id)
		h.drop(c)
	}
}

func newClient(h *Hub, conn *websocket.Conn, owner string, segments []string) *Client {
	return &Client{
		id:       shared.GenerateID(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		owner:    owner,
		segments: segments,
	}
}

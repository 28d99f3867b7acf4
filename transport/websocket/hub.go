package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// viewers only send control frames
	maxMessageSize = 512

	// broadcastBuffer bounds the hub queue; enqueue drops beyond it
	broadcastBuffer = 256
	// clientBuffer bounds one viewer's backlog before it is disconnected
	clientBuffer = 64
)

// Event names carried in Message.Event
const (
	EventStateUpdate = "state_update"
	EventCollision   = "collision"
	EventFinished    = "finished"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is one frame sent to viewers of a session
type Message struct {
	SessionID string           `json:"session_id"`
	SimState  *engine.SimState `json:"sim_state,omitempty"`
	Event     string           `json:"event,omitempty"`
	Data      interface{}      `json:"data,omitempty"`
}

// Client is one websocket viewer of a session
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// frame is an encoded Message waiting for delivery
type frame struct {
	sessionID string
	event     string
	payload   []byte
}

// Hub fans simulation updates out to the viewers of each session. Run owns
// delivery; the exported methods only queue work for it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	queue chan frame
	join  chan *Client
	leave chan *Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		queue: make(chan frame, broadcastBuffer),
		join:  make(chan *Client),
		leave: make(chan *Client),
	}
}

// Run processes joins, leaves and broadcasts. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.join:
			h.registerClient(c)
		case c := <-h.leave:
			h.unregisterClient(c)
		case f := <-h.queue:
			h.deliver(f)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to sessionID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer), sessionID: sessionID}
	h.join <- c

	go c.writeLoop()
	go c.readLoop()
}

// BroadcastToSession encodes a state snapshot and queues it for the viewers
// of sessionID. The state is not retained after the call returns.
func (h *Hub) BroadcastToSession(sessionID string, state *engine.SimState) {
	h.publish(&Message{SessionID: sessionID, SimState: state, Event: EventStateUpdate})
}

// BroadcastEvent encodes a named event and queues it for the viewers of sessionID
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.publish(&Message{SessionID: sessionID, Event: event, Data: data})
}

func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// publish encodes msg on the caller's goroutine and queues the frame
func (h *Hub) publish(msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}
	h.enqueue(frame{sessionID: msg.SessionID, event: msg.Event, payload: payload})
}

func (h *Hub) enqueue(f frame) {
	select {
	case h.queue <- f:
	default:
		log.Printf("WebSocket broadcast queue full, dropping %s for session %s", f.event, f.sessionID)
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.sessionID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[c.sessionID] = room
	}
	room[c] = struct{}{}
	viewers := len(room)
	h.mu.Unlock()

	log.Printf("Viewer joined session %s (%d watching)", c.sessionID, viewers)
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked detaches c and closes its send channel exactly once
func (h *Hub) dropLocked(c *Client) {
	room := h.rooms[c.sessionID]
	if _, ok := room[c]; !ok {
		return
	}

	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}

	log.Printf("Viewer left session %s (%d watching)", c.sessionID, len(room))
}

// deliver hands f to every viewer of its session. Viewers with a full
// backlog are disconnected.
func (h *Hub) deliver(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[f.sessionID] {
		select {
		case c.send <- f.payload:
		default:
			h.dropLocked(c)
		}
	}
}

// readLoop discards viewer input and detects disconnects
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writeLoop sends one frame per message and pings idle connections
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

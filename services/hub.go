package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"reConnectAPI/internal/types/notification"
	"reConnectAPI/middleware"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// PendingMatchLister supplies the snapshot of unanswered match requests
// pushed to a client right after it authenticates.
type PendingMatchLister interface {
	PendingMatchesForUser(ctx context.Context, userID uuid.UUID) ([]notification.PendingMatch, error)
}

// Hub maps live recipients to their single delivery channel and buffers
// frames for everyone else. At most one connection per user: a new
// connection silently replaces the old mapping, the old socket closes on
// its own. All state is process-local and lost on restart.
type Hub struct {
	mu      sync.Mutex
	conns   map[uuid.UUID]*Client
	pending map[uuid.UUID][]notification.Frame

	matches PendingMatchLister
	push    *PushDispatcher
}

func NewHub() *Hub {
	return &Hub{
		conns:   make(map[uuid.UUID]*Client),
		pending: make(map[uuid.UUID][]notification.Frame),
	}
}

// SetMatchLister and SetPushDispatcher are injected from main.go after
// construction; both are optional.
func (h *Hub) SetMatchLister(lister PendingMatchLister) {
	h.matches = lister
}

func (h *Hub) SetPushDispatcher(d *PushDispatcher) {
	h.push = d
}

// Authenticate registers conn as the live channel for userID, sends the
// pending-match snapshot, then flushes buffered frames in FIFO order.
// The snapshot query runs before the connection is registered, and the
// flush happens in the same critical section as the registration: a
// concurrent Send either lands in the buffer ahead of the flush or on the
// live channel after it, never in between.
func (h *Hub) Authenticate(c *Client, userID uuid.UUID) {
	var snapshot *notification.Frame
	if h.matches != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		matches, err := h.matches.PendingMatchesForUser(ctx, userID)
		if err != nil {
			log.Printf("Hub: failed to load pending matches for %s: %v", userID, err)
		} else if len(matches) > 0 {
			snapshot = &notification.Frame{
				Type:    notification.TypePendingMatches,
				Matches: matches,
				SentAt:  time.Now(),
			}
		}
	}

	h.mu.Lock()
	c.UserID = userID
	c.authed = true
	if snapshot != nil {
		c.enqueue(*snapshot)
	}
	buffered := h.pending[userID]
	delete(h.pending, userID)
	for _, frame := range buffered {
		c.enqueue(frame)
	}
	h.conns[userID] = c
	h.mu.Unlock()

	middleware.WSConnectionOpened()
	log.Printf("Hub: user %s connected, %d buffered notifications flushed", userID, len(buffered))
}

// Send delivers frame to userID if a live connection exists, otherwise
// buffers it until the user connects. Returns true when delivered live.
// Delivery problems never propagate: the triggering request has already
// succeeded by the time this runs.
func (h *Hub) Send(userID uuid.UUID, frame notification.Frame) bool {
	h.mu.Lock()
	c, live := h.conns[userID]
	if live && c.enqueue(frame) {
		h.mu.Unlock()
		return true
	}

	h.pending[userID] = append(h.pending[userID], frame)
	h.mu.Unlock()

	middleware.NotificationBuffered()
	log.Printf("Hub: user %s offline, buffered %s notification", userID, frame.Type)

	if h.push != nil {
		h.push.Dispatch(userID, frame)
	}
	return false
}

// Disconnect removes the mapping for whichever user the connection was
// registered under. A replaced connection does not evict its successor.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	if c.authed {
		if cur, ok := h.conns[c.UserID]; ok && cur == c {
			delete(h.conns, c.UserID)
		}
	}
	h.mu.Unlock()

	c.closeSend()
	if c.authed {
		middleware.WSConnectionClosed()
		log.Printf("Hub: user %s disconnected", c.UserID)
	}
}

// Connected reports whether userID currently has a live channel.
func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[userID]
	return ok
}

// Client is one WebSocket connection. The hub only ever touches the Send
// channel; the pumps own the underlying conn.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	UserID uuid.UUID
	authed bool

	closeOnce sync.Once
	closed    bool
	closeMu   sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 64),
	}
}

// enqueue marshals frame onto the send channel without blocking. A full or
// closed channel reports false so the hub can fall back to buffering.
func (c *Client) enqueue(frame notification.Frame) bool {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return false
	}

	data, err := json.Marshal(frame)
	if err != nil {
		c.closeMu.Unlock()
		log.Printf("Hub: failed to marshal %s frame: %v", frame.Type, err)
		return false
	}

	select {
	case c.Send <- data:
		c.closeMu.Unlock()
		return true
	default:
		c.closeMu.Unlock()
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		close(c.Send)
		c.closeMu.Unlock()
	})
}

// ReadPump waits for the auth frame, registers with the hub, then drains
// the connection until it drops. Any inbound type other than "auth" is
// ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Hub: unexpected close: %v", err)
			}
			break
		}

		var frame notification.AuthFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		if frame.Type == "auth" && !c.authed {
			userID, err := uuid.Parse(frame.UserID)
			if err != nil {
				log.Printf("Hub: auth frame with invalid userId %q", frame.UserID)
				continue
			}
			c.Hub.Authenticate(c, userID)
		}
	}
}

// WritePump pushes frames from the send channel to the peer and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// Client represents a WebSocket client connection
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *StoryHub
	mu     sync.Mutex
	closed bool
}

// StoryStateEvent is the wire shape pushed to clients whenever a story
// transitions between lifecycle states.
type StoryStateEvent struct {
	UserID  string            `json:"userId"`
	StoryID string            `json:"storyId"`
	State   models.StoryState `json:"state"`
}

// StoryHub manages WebSocket connections and broadcasts story state
// transitions to every connected client.
type StoryHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan StoryStateEvent
	running    *atomic.Bool
	mu         sync.RWMutex
}

// NewStoryHub creates a new story event hub
func NewStoryHub() *StoryHub {
	return &StoryHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan StoryStateEvent, 1000),
		running:    atomic.NewBool(false),
	}
}

// Run starts the hub's event loop
func (h *StoryHub) Run() {
	h.running.Store(true)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// StoryStateChanged queues a state transition for broadcast. Safe to call from
// any goroutine; a full queue drops the event rather than blocking a mutation.
func (h *StoryHub) StoryStateChanged(userID, storyID string, state models.StoryState) {
	if !h.running.Load() {
		return
	}
	select {
	case h.broadcast <- StoryStateEvent{UserID: userID, StoryID: storyID, State: state}:
	default:
		log.Warn().Str("storyId", storyID).Msg("hub broadcast channel full, dropping event")
	}
}

// registerClient adds a new client to the hub
func (h *StoryHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Info().Str("client", client.ID).Int("total", len(h.clients)).Msg("websocket client connected")

	// Start the client's write pump
	go client.writePump()
}

// unregisterClient removes a client from the hub
func (h *StoryHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		log.Info().Str("client", client.ID).Int("total", len(h.clients)).Msg("websocket client disconnected")
	}
}

// broadcastEvent sends a state transition to all connected clients
func (h *StoryHub) broadcastEvent(event StoryStateEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(map[string]interface{}{
		"type": "storyState",
		"data": event,
		"time": time.Now().Unix(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal story state event")
		return
	}

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Client send buffer full, skip
			log.Warn().Str("client", client.ID).Msg("client send buffer full")
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *StoryHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			if !ok {
				// Hub closed the channel
				c.closed = true
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.Conn.Close()
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.ID).Msg("unexpected websocket close")
			}
			break
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
)

// EventStream pushes proxy events to WebSocket clients.
type EventStream struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	// Events from every attached feed
	events chan feed.Event
	feeds  []Feed
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn            *websocket.Conn
	send            chan []byte
	stream          *EventStream
	subscribedAll   bool
	subscribedFeeds map[string]bool
	mu              sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type  string   `json:"type"`  // "subscribe", "unsubscribe", "ping"
	Feeds []string `json:"feeds"` // Feed names, or "*" for all
}

// EventMessage is sent to clients.
type EventMessage struct {
	Type      string `json:"type"` // "event"
	Feed      string `json:"feed"`
	Event     string `json:"event"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// NewEventStream subscribes to feeds. Events queue until Run is called.
func NewEventStream(feeds []Feed, logger *logging.Logger) *EventStream {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	s := &EventStream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		events:  make(chan feed.Event, 100),
		feeds:   feeds,
	}
	for _, f := range feeds {
		f.Subscribe(s.events)
	}
	return s
}

// Run broadcasts events until ctx is done, then unsubscribes and drops
// every client.
func (s *EventStream) Run(ctx context.Context) {
	defer func() {
		for _, f := range s.feeds {
			f.Unsubscribe(s.events)
		}
		s.closeClients()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			s.broadcast(event)
		}
	}
}

// handleWebSocket handles new WebSocket connections.
func (s *EventStream) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:            conn,
		send:            make(chan []byte, 256),
		stream:          s,
		subscribedAll:   true, // Subscribe to all by default
		subscribedFeeds: make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr().String())
}

// Clients returns the number of connected clients.
func (s *EventStream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// registerClient adds a client to the stream.
func (s *EventStream) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	metrics.WebSocketClients.Inc()
}

// unregisterClient removes a client from the stream.
func (s *EventStream) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
		metrics.WebSocketClients.Dec()
	}
}

// closeClients drops every connection. Each readPump then fails and
// unregisters its client.
func (s *EventStream) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		_ = client.conn.Close()
	}
}

// broadcast sends event to all subscribed clients.
func (s *EventStream) broadcast(event feed.Event) {
	message := EventMessage{
		Type:      "event",
		Feed:      event.Feed,
		Event:     string(event.Type),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
	if event.From != (common.Address{}) {
		message.From = event.From.Hex()
	}
	if event.To != (common.Address{}) {
		message.To = event.To.Hex()
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal event", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(event.Feed) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping event")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.stream.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.stream.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.stream.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.stream.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Feeds)
	case "unsubscribe":
		c.unsubscribe(msg.Feeds)
	case "ping":
		c.sendPong()
	default:
		c.stream.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe narrows the client to feeds, or widens it to all with "*".
func (c *WebSocketClient) subscribe(feeds []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(feeds) == 0 || (len(feeds) == 1 && feeds[0] == "*") {
		c.subscribedAll = true
		c.subscribedFeeds = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, name := range feeds {
			c.subscribedFeeds[name] = true
		}
	}

	c.stream.logger.Debug("Client subscribed", "feeds", feeds)
}

// unsubscribe drops feeds, or everything with "*".
func (c *WebSocketClient) unsubscribe(feeds []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(feeds) == 0 || (len(feeds) == 1 && feeds[0] == "*") {
		c.subscribedAll = false
		c.subscribedFeeds = make(map[string]bool)
	} else {
		for _, name := range feeds {
			delete(c.subscribedFeeds, name)
		}
	}

	c.stream.logger.Debug("Client unsubscribed", "feeds", feeds)
}

// shouldReceive checks if client should receive events of feed.
func (c *WebSocketClient) shouldReceive(feedName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribedAll || c.subscribedFeeds[feedName]
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}

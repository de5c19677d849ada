// Package wshub pushes live ingestion events to WebSocket subscribers.
package wshub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tinytelemetry/logwatch/internal/metrics"
)

// Message types sent by the hub itself.
const (
	TypeConnection   = "connection_response"
	TypeSubscription = "subscription_response"
)

// Topics clients can subscribe to.
const (
	TopicLogs   = "logs"
	TopicAlerts = "alerts"
	TopicStats  = "stats"
)

// eventTopics routes pipeline events to topics.
var eventTopics = map[string]string{
	"new_logs":     TopicLogs,
	"new_alerts":   TopicAlerts,
	"stats_update": TopicStats,
}

const (
	sendBuffer     = 256
	broadcastQueue = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
)

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// Client is one WebSocket connection.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool
	mu     sync.RWMutex
	// closed is guarded by hub.mu and set when send is closed.
	closed bool
}

// Message is the envelope written to clients.
type Message struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	Topic     string `json:"-"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(n))
			log.Printf("wshub: client %s connected (total: %d)", client.ID, n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(n))
			log.Printf("wshub: client %s disconnected (total: %d)", client.ID, n)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) broadcastMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("wshub: failed to marshal %s: %v", msg.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if msg.Topic != "" && !client.isSubscribed(msg.Topic) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow client: drop this message for it.
		}
	}
}

// Publish queues a pipeline event for the clients subscribed to its topic.
// It never blocks; when the queue is full the event is dropped.
func (h *Hub) Publish(event string, payload any) {
	h.BroadcastToTopic(eventTopics[event], event, payload)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msgType string, payload any) {
	h.BroadcastToTopic("", msgType, payload)
}

// BroadcastToTopic sends a message to the clients subscribed to topic.
func (h *Hub) BroadcastToTopic(topic, msgType string, payload any) {
	msg := newMessage(msgType, payload)
	msg.Topic = topic
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("wshub: broadcast queue full, dropping %s", msgType)
	}
}

func newMessage(msgType string, payload any) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection. New clients
// are subscribed to every topic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wshub: upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		topics: map[string]bool{
			TopicLogs:   true,
			TopicAlerts: true,
			TopicStats:  true,
		},
	}

	// Queued before registration, so it is always the first message.
	if data, err := json.Marshal(newMessage(TypeConnection, map[string]string{
		"client_id": client.ID,
		"status":    "connected",
	})); err == nil {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *Client) setSubscribed(topic string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
}

// closeSend closes the send channel. The caller holds hub.mu.
func (c *Client) closeSend() {
	c.closed = true
	close(c.send)
}

// sendDirect queues a message for this client only.
func (c *Client) sendDirect(msgType string, payload any) {
	data, err := json.Marshal(newMessage(msgType, payload))
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wshub: read error from %s: %v", c.ID, err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage applies subscribe/unsubscribe requests and acknowledges them.
func (c *Client) handleMessage(data []byte) {
	var msg struct {
		Action string `json:"action"`
		Topic  string `json:"topic"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Action {
	case "subscribe":
		c.setSubscribed(msg.Topic, true)
	case "unsubscribe":
		c.setSubscribed(msg.Topic, false)
	default:
		return
	}
	c.sendDirect(TypeSubscription, map[string]string{
		"action": msg.Action,
		"topic":  msg.Topic,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

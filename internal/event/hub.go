package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientBuffer = 64

// ClientMessage is what a live client may send after connecting.
type ClientMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// TopicFilter reports whether a client may follow topic.
type TopicFilter func(topic string) bool

// Client is one live connection and its topic subscriptions.
type Client struct {
	ID     string
	send   chan []byte
	topics map[string]struct{}
	allow  TopicFilter // nil allows every topic
}

func newClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		send:   make(chan []byte, clientBuffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks live clients by topic and implements Sink for them.
type Hub struct {
	mu      sync.RWMutex
	byTopic map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		byTopic: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a new client subscribed to topics.
func (h *Hub) Register(topics []string) *Client {
	return h.register(topics, nil)
}

func (h *Hub) register(topics []string, allow TopicFilter) *Client {
	c := newClient()
	c.allow = allow
	h.mu.Lock()
	h.all[c] = struct{}{}
	h.subscribeLocked(c, topics)
	h.mu.Unlock()
	return c
}

// Unregister drops c from every topic and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	for topic := range c.topics {
		h.removeLocked(c, topic)
	}
	delete(h.all, c)
	close(c.send)
}

// Subscribe adds topics to a registered client.
func (h *Hub) Subscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; ok {
		h.subscribeLocked(c, topics)
	}
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		h.removeLocked(c, topic)
	}
}

func (h *Hub) subscribeLocked(c *Client, topics []string) {
	for _, topic := range topics {
		if topic == "" || (c.allow != nil && !c.allow(topic)) {
			continue
		}
		if h.byTopic[topic] == nil {
			h.byTopic[topic] = make(map[*Client]struct{})
		}
		h.byTopic[topic][c] = struct{}{}
		c.topics[topic] = struct{}{}
	}
}

func (h *Hub) removeLocked(c *Client, topic string) {
	if subs, ok := h.byTopic[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.byTopic, topic)
		}
	}
	delete(c.topics, topic)
}

// ProcessMessage applies a subscribe or unsubscribe request.
func (h *Hub) ProcessMessage(c *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(c, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics)
	}
}

// Publish sends e once to every client subscribed to any of its topics.
// Clients with a full buffer miss the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range e.Topics {
		for c := range h.byTopic[topic] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- data:
			default:
				h.logger.Debug("live client buffer full", zap.String("client", c.ID))
			}
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[topic])
}

// Serve pumps events to conn until the peer disconnects. It blocks.
func (h *Hub) Serve(conn Conn, topics []string) {
	h.ServeFiltered(conn, topics, nil)
}

// ServeFiltered is Serve with every subscription, initial or later, checked
// against allow.
func (h *Hub) ServeFiltered(conn Conn, topics []string, allow TopicFilter) {
	c := h.register(topics, allow)
	h.logger.Debug("live client connected", zap.String("client", c.ID), zap.Strings("topics", topics))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.ProcessMessage(c, msg)
	}

	h.Unregister(c)
	_ = conn.Close()
	<-done
	h.logger.Debug("live client disconnected", zap.String("client", c.ID))
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"preset-teaching-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "preset_cluster_events"

// Hub tracks live connections per owner. With redis configured, messages
// are relayed to the other instances too.
type Hub struct {
	clients    map[string][]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
	origin     string
	rdb        *redis.Client
	logger     logger.ILogger
}

type clusterMessage struct {
	Origin  string          `json:"origin"`
	Owner   string          `json:"owner"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origin:     uuid.NewString(),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Owner] = append(h.clients[client.Owner], client)
			h.mu.Unlock()
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"owner": client.Owner})
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[client.Owner]
	for i, c := range clients {
		if c == client {
			h.clients[client.Owner] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.Owner]) == 0 {
		delete(h.clients, client.Owner)
	}
}

// Connected counts local connections of one owner.
func (h *Hub) Connected(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[owner])
}

func encodeFrame(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": data,
	})
}

// SendTo delivers a typed frame to every connection of owner, here and on
// the other instances.
func (h *Hub) SendTo(owner, eventType string, data interface{}) {
	frame, err := encodeFrame(eventType, data)
	if err != nil {
		h.logger.Error("HUB", "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}
	h.deliver(owner, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.origin, Owner: owner, Message: frame})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("HUB", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliver never blocks; a client with a full buffer is dropped. The read
// lock is held while sending so remove cannot close Send underneath.
func (h *Hub) deliver(owner string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[owner] {
		select {
		case client.Send <- frame:
		default:
			h.logger.Warn("HUB", "Send buffer full, dropping client", map[string]interface{}{"owner": owner})
			go h.drop(client)
		}
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("HUB", "Bad cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.origin {
			continue
		}
		h.deliver(payload.Owner, payload.Message)
	}
}

package websocket

import (
	"context"
	"encoding/json"

	"kb-assistant-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// clusterChannel carries deliveries between instances so a user connected elsewhere still gets the answer.
const clusterChannel = "kb:cluster_events"

// InboundFunc receives a text frame a connected user sent.
type InboundFunc func(userID string, data []byte)

type Hub struct {
	// UserID -> connections (multi-device)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}

	rdb        *redis.Client
	instanceID string
	onInbound  InboundFunc

	logger logger.ILogger
}

type delivery struct {
	userID string
	data   []byte
}

// clusterPayload is what goes over Redis. Origin lets the publishing instance skip its own message.
type clusterPayload struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// NewHub creates a hub. rdb may be nil for a single instance.
func NewHub(rdb *redis.Client, instanceID string, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: instanceID,
		logger:     log,
	}
}

// OnInbound sets the callback for frames sent by users. It must be set before Run.
func (h *Hub) OnInbound(fn InboundFunc) {
	h.onInbound = fn
}

// Run owns the client map until ctx ends, then closes every connection's send channel.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for userID, clients := range h.clients {
				for _, c := range clients {
					close(c.Send)
				}
				delete(h.clients, userID)
			}
			return

		case client := <-h.register:
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"user_id":     client.UserID,
				"connections": len(h.clients[client.UserID]),
			})

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.deliver:
			h.sendLocal(d.userID, d.data)
		}
	}
}

// Send delivers message to every local connection of userID and publishes it for the other instances.
func (h *Hub) Send(ctx context.Context, userID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.deliver <- delivery{userID: userID, data: data}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterPayload{
			Origin:       h.instanceID,
			TargetUserID: userID,
			Message:      data,
		})
		if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"user_id": userID, "error": err})
		}
	}
	return nil
}

func (h *Hub) sendLocal(userID string, data []byte) {
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
			h.remove(client)
		}
	}
}

// remove closes client's send channel exactly once.
func (h *Hub) remove(client *Client) {
	clients := h.clients[client.UserID]
	found := false
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			found = true
			break
		}
	}
	if found && len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

// handleRemote routes a cluster message to local clients unless this instance published it.
func (h *Hub) handleRemote(ctx context.Context, raw []byte) {
	var payload clusterPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err})
		return
	}
	if payload.Origin == h.instanceID || payload.TargetUserID == "" {
		return
	}
	select {
	case h.deliver <- delivery{userID: payload.TargetUserID, data: payload.Message}:
	case <-h.done:
	case <-ctx.Done():
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemote(ctx, []byte(msg.Payload))
		}
	}
}

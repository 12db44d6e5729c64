package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go-hrflow/internal/features/approval"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const clientBuffer = 32

// Envelope is the frame pushed to websocket subscribers
type Envelope struct {
	ID      string            `json:"id"`
	Channel string            `json:"channel"`
	Type    string            `json:"type"`
	Request *approval.Request `json:"request"`
	SentAt  time.Time         `json:"sent_at"`
}

// Client is one websocket subscription
type Client struct {
	ID       string
	LoginID  string
	Channels []string
	send     chan []byte
}

// Messages yields frames for the client until it is unregistered
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub fans events out to subscribed clients. Publish never blocks: a client whose
// buffer is full misses the frame.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[string]*Client
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[string]*Client),
		logger:   logger,
	}
}

// Register subscribes loginID to its own channel, plus the admin channel for admins
func (h *Hub) Register(loginID string, admin bool) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		LoginID:  loginID,
		Channels: []string{approval.UserChannel(loginID)},
		send:     make(chan []byte, clientBuffer),
	}
	if admin {
		c.Channels = append(c.Channels, approval.AdminChannel)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range c.Channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[string]*Client)
		}
		h.channels[ch][c.ID] = c
	}
	h.logger.Debug("Websocket client registered", zap.String("client_id", c.ID), zap.String("login_id", loginID))
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	for _, ch := range c.Channels {
		if subs, ok := h.channels[ch]; ok {
			if _, ok := subs[c.ID]; ok {
				delete(subs, c.ID)
				removed = true
			}
			if len(subs) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	if removed {
		close(c.send)
	}
}

// Publish implements approval.Broadcaster
func (h *Hub) Publish(channel string, event approval.Event) {
	frame, err := json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Channel: channel,
		Type:    event.Type,
		Request: event.Request,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("Broadcast marshal failed", zap.String("channel", channel), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.channels[channel] {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("Websocket client too slow, frame dropped",
				zap.String("client_id", c.ID),
				zap.String("channel", channel))
		}
	}
}

// Subscribers counts the clients on a channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

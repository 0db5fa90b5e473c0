package server

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// clientBuffer is the number of events queued per client before drops.
const clientBuffer = 256

// Event is one bus event encoded for the SSE stream.
type Event struct {
	Seq     uint64
	Bus     string
	Channel string
	Data    []byte
}

// Client is one connected renderer.
type Client struct {
	ID          string    `json:"id"`
	UserAgent   string    `json:"userAgent"`
	IPAddress   string    `json:"ipAddress"`
	DeviceName  string    `json:"deviceName"`
	ConnectedAt time.Time `json:"connectedAt"`
	Audio       bool      `json:"audio"`
	Dropped     int       `json:"dropped"`

	events chan Event
}

// Events delivers broadcast events until the client is removed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// ClientRegistry tracks connected renderers, fans events out to them and
// remembers the latest event per channel so late joiners see current state.
// Exactly one client, the audio client, owns the mirrored audio element.
type ClientRegistry struct {
	clients map[string]*Client
	order   []string // connection order
	audio   string
	latest  map[string]Event
	seq     uint64
	mutex   sync.RWMutex
	logger  *logrus.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(logger *logrus.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		latest:  make(map[string]Event),
		logger:  logger,
	}
}

// Register adds a client and queues the current state for it. The first
// client becomes the audio client.
func (cr *ClientRegistry) Register(userAgent, ipAddress string) *Client {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	client := &Client{
		ID:          uuid.NewString(),
		UserAgent:   userAgent,
		IPAddress:   ipAddress,
		DeviceName:  guessDeviceName(userAgent),
		ConnectedAt: time.Now(),
		events:      make(chan Event, clientBuffer),
	}
	cr.clients[client.ID] = client
	cr.order = append(cr.order, client.ID)
	if cr.audio == "" {
		cr.audio = client.ID
	}

	replay := make([]Event, 0, len(cr.latest))
	for _, evt := range cr.latest {
		replay = append(replay, evt)
	}
	slices.SortFunc(replay, func(a, b Event) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	for _, evt := range replay {
		cr.deliver(client, evt)
	}

	cr.logger.WithFields(logrus.Fields{
		"client_id": client.ID,
		"device":    client.DeviceName,
		"audio":     cr.audio == client.ID,
	}).Info("Client connected")
	return client
}

// Remove drops a client and closes its event channel. If it was the audio
// client the most recently connected remaining client takes over.
func (cr *ClientRegistry) Remove(clientID string) {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	client, exists := cr.clients[clientID]
	if !exists {
		return
	}
	delete(cr.clients, clientID)
	cr.order = slices.DeleteFunc(cr.order, func(id string) bool { return id == clientID })
	close(client.events)

	if cr.audio == clientID {
		cr.audio = ""
		if n := len(cr.order); n > 0 {
			cr.audio = cr.order[n-1]
		}
	}

	cr.logger.WithField("client_id", clientID).Info("Client disconnected")
}

// Publish records an event and queues it for every client. Slow clients
// drop events rather than blocking the publisher.
func (cr *ClientRegistry) Publish(bus, channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		cr.logger.WithError(err).WithField("channel", channel).Error("Failed to encode event")
		return
	}
	if payload == nil {
		data = []byte("{}")
	}

	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	cr.seq++
	evt := Event{Seq: cr.seq, Bus: bus, Channel: channel, Data: data}
	cr.latest[channel] = evt

	for _, id := range cr.order {
		cr.deliver(cr.clients[id], evt)
	}
}

// deliver must be called with the lock held.
func (cr *ClientRegistry) deliver(client *Client, evt Event) {
	select {
	case client.events <- evt:
	default:
		client.Dropped++
		if client.Dropped == 1 || client.Dropped%100 == 0 {
			cr.logger.WithFields(logrus.Fields{
				"client_id": client.ID,
				"dropped":   client.Dropped,
			}).Warn("Client is not keeping up, dropping events")
		}
	}
}

// IsAudioClient reports whether clientID owns the audio element.
func (cr *ClientRegistry) IsAudioClient(clientID string) bool {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	return clientID != "" && cr.audio == clientID
}

// SetAudioClient hands the audio element to another connected client.
func (cr *ClientRegistry) SetAudioClient(clientID string) bool {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	if _, exists := cr.clients[clientID]; !exists {
		return false
	}
	cr.audio = clientID
	return true
}

// Clients returns copies of the connected clients in connection order.
func (cr *ClientRegistry) Clients() []Client {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	result := make([]Client, 0, len(cr.order))
	for _, id := range cr.order {
		c := *cr.clients[id]
		c.Audio = id == cr.audio
		c.events = nil
		result = append(result, c)
	}
	return result
}

// Count returns the number of connected clients.
func (cr *ClientRegistry) Count() int {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	return len(cr.clients)
}

// CloseAll disconnects every client.
func (cr *ClientRegistry) CloseAll() {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	for _, client := range cr.clients {
		close(client.events)
	}
	cr.clients = make(map[string]*Client)
	cr.order = nil
	cr.audio = ""
}

// guessDeviceName tries to guess device name from user agent
func guessDeviceName(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "android"):
		return "Android Device"
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "mobile"):
		return "Mobile Device"
	case strings.Contains(ua, "mac"):
		return "Mac"
	case strings.Contains(ua, "windows"):
		return "Windows PC"
	case strings.Contains(ua, "linux"):
		return "Linux PC"
	}
	return "Web Browser"
}

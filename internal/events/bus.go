package events

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler receives the payload passed to Emit.
type Handler func(payload any)

// TapHandler receives every event emitted on a bus together with its channel.
type TapHandler func(channel string, payload any)

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription struct {
	channel string
	id      uint64
}

// Channel returns the channel the subscription was registered on.
func (s Subscription) Channel() string {
	return s.channel
}

type listener struct {
	id  uint64
	fn  Handler
	tap TapHandler
}

// tapChannel is the internal key under which taps are stored. It can never
// collide with a real channel because Emit skips it.
const tapChannel = "*"

// Bus is a synchronous publish/subscribe hub. Handlers for a channel run in
// registration order on the goroutine that calls Emit. Independent buses never
// deliver to each other.
type Bus struct {
	name      string
	logger    *logrus.Logger
	mutex     sync.RWMutex
	listeners map[string][]listener
	nextID    uint64
}

// NewBus creates an empty bus. The name only appears in log output.
func NewBus(name string, logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Bus{
		name:      name,
		logger:    logger,
		listeners: make(map[string][]listener),
	}
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.name
}

// On registers fn for channel. A nil fn only creates the channel.
func (b *Bus) On(channel string, fn Handler) Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.listeners[channel]; !exists {
		b.listeners[channel] = nil
	}
	if fn == nil {
		return Subscription{channel: channel}
	}

	b.nextID++
	b.listeners[channel] = append(b.listeners[channel], listener{id: b.nextID, fn: fn})
	return Subscription{channel: channel, id: b.nextID}
}

// Tap registers fn for every channel of the bus. Taps run after the channel
// handlers of each emit.
func (b *Bus) Tap(fn TapHandler) Subscription {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	b.listeners[tapChannel] = append(b.listeners[tapChannel], listener{id: b.nextID, tap: fn})
	return Subscription{channel: tapChannel, id: b.nextID}
}

// Off removes a handler. Unknown subscriptions are ignored. The channel is
// dropped once its last handler is gone.
func (b *Bus) Off(sub Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	current, exists := b.listeners[sub.channel]
	if !exists {
		return
	}

	kept := make([]listener, 0, len(current))
	for _, l := range current {
		if l.id != sub.id {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, sub.channel)
		return
	}
	b.listeners[sub.channel] = kept
}

// Emit invokes every handler of channel with payload. Emitting to a channel
// nobody subscribed to is a no-op. A panicking handler is logged and does not
// stop the remaining handlers.
func (b *Bus) Emit(channel string, payload any) {
	if channel == tapChannel {
		return
	}

	b.mutex.RLock()
	handlers := append([]listener(nil), b.listeners[channel]...)
	taps := append([]listener(nil), b.listeners[tapChannel]...)
	b.mutex.RUnlock()

	for _, l := range handlers {
		b.invoke(channel, func() { l.fn(payload) })
	}
	for _, l := range taps {
		b.invoke(channel, func() { l.tap(channel, payload) })
	}
}

// HasChannel reports whether channel has been created by a subscription.
func (b *Bus) HasChannel(channel string) bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	_, exists := b.listeners[channel]
	return exists
}

// ListenerCount returns the number of handlers registered on channel.
func (b *Bus) ListenerCount(channel string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.listeners[channel])
}

func (b *Bus) invoke(channel string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"bus":     b.name,
				"channel": channel,
				"panic":   r,
			}).Error("Event handler panicked")
		}
	}()
	call()
}

// Subscribe registers a typed handler. Payloads of another type are logged
// and skipped.
func Subscribe[T any](b *Bus, channel string, fn func(T)) Subscription {
	return b.On(channel, func(payload any) {
		typed, ok := payload.(T)
		if !ok {
			b.logger.WithFields(logrus.Fields{
				"bus":     b.name,
				"channel": channel,
			}).Warnf("Dropped payload of unexpected type %T", payload)
			return
		}
		fn(typed)
	})
}

package stats

import (
	"fmt"
)

// DefaultKey is the item key stats are stored under.
const DefaultKey = "musicStats"

// Backend is durable storage for the serialized stats document.
type Backend interface {
	// ReadStats returns the stored document, or nil if nothing is stored.
	ReadStats() ([]byte, error)
	// WriteStats replaces the stored document.
	WriteStats(data []byte) error
}

// ItemStore is a string key/value store in the shape of browser local
// storage.
type ItemStore interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

// ItemBackend keeps the stats document under a single key of an ItemStore.
type ItemBackend struct {
	items ItemStore
	key   string
}

// NewItemBackend creates a backend storing stats under key (DefaultKey if
// empty).
func NewItemBackend(items ItemStore, key string) *ItemBackend {
	if key == "" {
		key = DefaultKey
	}
	return &ItemBackend{items: items, key: key}
}

// ReadStats implements Backend.
func (b *ItemBackend) ReadStats() ([]byte, error) {
	value, ok, err := b.items.GetItem(b.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.key, err)
	}
	if !ok {
		return nil, nil
	}
	return []byte(value), nil
}

// WriteStats implements Backend.
func (b *ItemBackend) WriteStats(data []byte) error {
	if err := b.items.SetItem(b.key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.key, err)
	}
	return nil
}

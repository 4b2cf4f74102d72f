package store

import (
	"context"
	"sync"

	"github.com/effective-security/mcpchat/pkg/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
}

// NewMemoryStore returns a MessageStore backed by process memory.
func NewMemoryStore() MessageStore {
	return &inMemory{}
}

func (m *inMemory) Messages(_ context.Context, chatID string) []llms.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil
	}
	return m.storage[chatID]
}

func (m *inMemory) Add(_ context.Context, chatID string, msgs ...llms.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]llms.Message)
	}
	m.storage[chatID] = append(m.storage[chatID], msgs...)
	return nil
}

func (m *inMemory) Reset(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, chatID)
	}
	return nil
}

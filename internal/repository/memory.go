package repository

import (
	"context"
	"sync"
)

// MemoryChangeFeed is an in-process fallback for the Redis feed. Notices are
// delivered synchronously to every subscriber.
type MemoryChangeFeed struct {
	mu       sync.RWMutex
	handlers []func(table string)
}

func NewMemoryChangeFeed() *MemoryChangeFeed {
	return &MemoryChangeFeed{}
}

func (f *MemoryChangeFeed) Notify(ctx context.Context, table string) error {
	f.mu.RLock()
	handlers := append([]func(string){}, f.handlers...)
	f.mu.RUnlock()

	for _, handler := range handlers {
		handler(table)
	}
	return nil
}

func (f *MemoryChangeFeed) Subscribe(ctx context.Context, handler func(table string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return nil
}

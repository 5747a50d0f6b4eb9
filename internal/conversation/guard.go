package conversation

import (
	"context"
	"sync"
)

// StreamGuard admits at most one open stream per conversation
type StreamGuard interface {
	// Acquire returns ErrStreamOpen when the conversation already streams
	Acquire(ctx context.Context, conversationID string) (func(), error)
}

// LocalGuard is a StreamGuard for a single process
type LocalGuard struct {
	mu   sync.Mutex
	open map[string]struct{}
}

// NewLocalGuard creates an in-process stream guard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{open: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(ctx context.Context, conversationID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.open[conversationID]; ok {
		return nil, ErrStreamOpen
	}
	g.open[conversationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.open, conversationID)
			g.mu.Unlock()
		})
	}, nil
}

package broker

import (
	"context"
	"sync"
)

// Local 单实例进程内总线
type Local struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

func NewLocal() *Local {
	return &Local{handlers: make(map[int]Handler)}
}

func (l *Local) Publish(_ context.Context, topic Topic, payload []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	for _, h := range l.handlers {
		h(topic, payload)
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, handler Handler) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.handlers, id)
	l.mu.Unlock()
	return nil
}

// Subscribers 当前订阅者数量
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers)
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = make(map[int]Handler)
	return nil
}

package changefeed

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by a bus that has been closed.
var ErrClosed = errors.New("change feed closed")

const subscriberBuffer = 64

// MemoryBus fans events out inside one process.
type MemoryBus struct {
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*memorySub
	closed bool
}

type memorySub struct {
	tables []Table
	ch     chan Event
}

// NewMemoryBus creates a new MemoryBus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{logger: logger, subs: map[int]*memorySub{}}
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for id, sub := range b.subs {
		if !slices.Contains(sub.tables, event.Table) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping change event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("table", string(event.Table)),
				zap.String("type", string(event.Type)),
			)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, tables ...Table) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	sub := &memorySub{tables: slices.Clone(tables), ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub

	go func() {
		<-ctx.Done()
		b.remove(id)
	}()

	return sub.ch, nil
}

func (b *MemoryBus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	return nil
}

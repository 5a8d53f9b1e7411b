package web

import (
	"context"
	"sync"
)

// FixBroadcaster fans published fixes out to websocket subscribers. It keeps
// the most recent value so new subscribers get an immediate sample.
//
// It satisfies publish.Publisher so it can sit in the same fan-out as the
// network sinks.
type FixBroadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan any
	nextID   int
	last     any
	haveLast bool
	closed   bool
}

func NewFixBroadcaster() *FixBroadcaster {
	return &FixBroadcaster{subs: make(map[int]chan any)}
}

// Subscribe returns a channel that receives fixes until Unsubscribe or Close.
// Slow subscribers miss fixes rather than block the publisher.
func (b *FixBroadcaster) Subscribe(buffer int) (int, <-chan any) {
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan any, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return -1, ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.haveLast {
		ch <- b.last
	}
	return id, ch
}

func (b *FixBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *FixBroadcaster) Publish(_ context.Context, fix any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.last = fix
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- fix:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (b *FixBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *FixBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

package state

import (
	"container/list"
	"context"
	"sync"
)

// Lanes serialises work per key in arrival order. Different keys never
// block each other.
type Lanes struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	busy    bool
	waiters *list.List
}

func NewLanes() *Lanes {
	return &Lanes{lanes: map[string]*lane{}}
}

// Acquire blocks until key is free and every earlier caller has released it.
// The returned release func must be called exactly once; extra calls are no-ops.
func (l *Lanes) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{waiters: list.New()}
		l.lanes[key] = ln
	}
	if !ln.busy && ln.waiters.Len() == 0 {
		ln.busy = true
		l.mu.Unlock()
		return l.releaser(key), nil
	}
	ready := make(chan struct{})
	elem := ln.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return l.releaser(key), nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// ownership was handed over while we were giving up
			l.mu.Unlock()
			l.release(key)
		default:
			ln.waiters.Remove(elem)
			l.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

// Waiting reports how many callers are queued behind the current holder.
func (l *Lanes) Waiting(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ln, ok := l.lanes[key]; ok {
		return ln.waiters.Len()
	}
	return 0
}

func (l *Lanes) releaser(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key) })
	}
}

func (l *Lanes) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[key]
	if !ok {
		return
	}
	if front := ln.waiters.Front(); front != nil {
		ln.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	ln.busy = false
	delete(l.lanes, key)
}

package tabs

import (
	"context"
	"sync"
)

// Barrier is a one-shot gate. It starts closed and, once opened, stays open.
type Barrier struct {
	once sync.Once
	ch   chan struct{}
}

func NewBarrier() *Barrier {
	return &Barrier{ch: make(chan struct{})}
}

// Open releases every waiter. It reports false when the barrier was already
// open.
func (b *Barrier) Open() bool {
	opened := false
	b.once.Do(func() {
		close(b.ch)
		opened = true
	})
	return opened
}

// Wait blocks until the barrier opens or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Barrier) Opened() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

// Done is closed when the barrier opens.
func (b *Barrier) Done() <-chan struct{} { return b.ch }

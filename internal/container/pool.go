package container

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// DefaultWatermark is the number of pre-warmed containers kept on hand.
const DefaultWatermark = 1

const createTimeout = 30 * time.Second

// Pool keeps a watermark of pre-created, not-yet-loaded containers.
//
// Acquire pops an idle container and starts a refill before returning. Every
// other pool operation waits for that refill, so back-to-back acquisitions
// never observe the pool below its watermark.
type Pool struct {
	factory   Factory
	bus       *bus.Bus
	watermark int

	mu        sync.Mutex
	cond      *sync.Cond
	idle      []*Container
	refilling bool
	closed    bool
}

func NewPool(factory Factory, b *bus.Bus, watermark int) *Pool {
	if watermark < 1 {
		watermark = DefaultWatermark
	}
	p := &Pool{factory: factory, bus: b, watermark: watermark}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Fill synchronously tops the pool up to its watermark. It holds the refill
// gate while creating, so concurrent pool calls wait for it.
func (p *Pool) Fill(ctx context.Context) error {
	p.mu.Lock()
	p.waitRefillLocked()
	if p.closed {
		p.mu.Unlock()
		return types.NewError(types.CodePoolExhausted, "pool is closed", nil)
	}
	missing := p.watermark - len(p.idle)
	p.refilling = true
	p.mu.Unlock()

	created, err := p.create(ctx, missing)

	p.mu.Lock()
	p.idle = append(p.idle, created...)
	idle := len(p.idle)
	p.refilling = false
	p.cond.Broadcast()
	p.mu.Unlock()

	slog.Info("pool filled", "created", len(created), "idle", idle, "watermark", p.watermark)
	return err
}

// Acquire hands out one idle container. An empty pool creates one on the
// spot; POOL_EXHAUSTED is returned only when the factory cannot.
func (p *Pool) Acquire(ctx context.Context) (*Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitRefillLocked()

	if p.closed {
		return nil, types.NewError(types.CodePoolExhausted, "pool is closed", nil)
	}

	var c *Container
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		surface, err := p.factory.NewSurface(ctx)
		if err != nil {
			return nil, types.NewError(types.CodePoolExhausted, "no idle container and creation failed", err)
		}
		c = New(surface, p.bus)
	}

	p.refilling = true
	go p.refill()
	return c, nil
}

// Size returns the idle count once any in-flight refill has finished.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitRefillLocked()
	return len(p.idle)
}

// Idle returns the current idle count without waiting for a refill.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

func (p *Pool) Watermark() int { return p.watermark }

// Contains reports whether a surface id is currently idle in the pool.
func (p *Pool) Contains(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitRefillLocked()
	for _, c := range p.idle {
		if c.ID() == id {
			return true
		}
	}
	return false
}

// Close destroys every idle surface. Later acquisitions fail.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	p.waitRefillLocked()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		if err := c.Surface().Close(ctx); err != nil {
			slog.Debug("pool surface close failed", "container_id", c.ID(), "error", err)
		}
	}
	slog.Info("pool closed", "destroyed", len(idle))
}

func (p *Pool) waitRefillLocked() {
	for p.refilling {
		p.cond.Wait()
	}
}

func (p *Pool) refill() {
	p.mu.Lock()
	missing := p.watermark - len(p.idle)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	created, err := p.create(ctx, missing)
	cancel()

	p.mu.Lock()
	p.idle = append(p.idle, created...)
	idle := len(p.idle)
	p.refilling = false
	p.cond.Broadcast()
	p.mu.Unlock()

	if err != nil {
		slog.Warn("pool refill incomplete", "created", len(created), "idle", idle, "watermark", p.watermark, "error", err)
		return
	}
	slog.Debug("pool refilled", "created", len(created), "idle", idle)
}

func (p *Pool) create(ctx context.Context, n int) ([]*Container, error) {
	created := make([]*Container, 0, max(n, 0))
	for i := 0; i < n; i++ {
		surface, err := p.factory.NewSurface(ctx)
		if err != nil {
			return created, err
		}
		created = append(created, New(surface, p.bus))
	}
	return created, nil
}

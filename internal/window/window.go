// Package window models the single host window that tab containers are
// attached to.
package window

import (
	"context"
	"sync"

	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Backend performs the native side effects of window operations.
type Backend interface {
	// ContentBounds reports the drawable area of the window.
	ContentBounds(ctx context.Context) (types.Bounds, error)
	// Raise brings surface to the foreground of the window.
	Raise(ctx context.Context, surface container.Surface) error
	Show(ctx context.Context) error
	Focus(ctx context.Context) error
}

// Window keeps the attachment stack of surfaces. The last attached or raised
// surface is the foreground one.
type Window struct {
	backend Backend

	mu    sync.Mutex
	views []container.Surface
}

func New(backend Backend) *Window {
	return &Window{backend: backend}
}

// AddView attaches surface on top of the stack. Attaching an already
// attached surface is a no-op.
func (w *Window) AddView(surface container.Surface) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexLocked(surface.ID()) >= 0 {
		return
	}
	w.views = append(w.views, surface)
}

// RemoveView detaches surface without destroying it.
func (w *Window) RemoveView(surface container.Surface) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexLocked(surface.ID()); i >= 0 {
		w.views = append(w.views[:i], w.views[i+1:]...)
	}
}

// SetTopView moves an attached surface to the foreground.
func (w *Window) SetTopView(ctx context.Context, surface container.Surface) error {
	w.mu.Lock()
	i := w.indexLocked(surface.ID())
	if i < 0 {
		w.mu.Unlock()
		return types.NewError(types.CodeUnknownContainer, "surface is not attached", nil)
	}
	w.views = append(w.views[:i], w.views[i+1:]...)
	w.views = append(w.views, surface)
	w.mu.Unlock()

	return w.backend.Raise(ctx, surface)
}

// TopView returns the foreground surface.
func (w *Window) TopView() (container.Surface, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.views) == 0 {
		return nil, false
	}
	return w.views[len(w.views)-1], true
}

// Views returns the attachment stack, bottom first.
func (w *Window) Views() []container.Surface {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]container.Surface(nil), w.views...)
}

func (w *Window) Contains(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexLocked(id) >= 0
}

func (w *Window) ContentBounds(ctx context.Context) (types.Bounds, error) {
	return w.backend.ContentBounds(ctx)
}

func (w *Window) Show(ctx context.Context) error { return w.backend.Show(ctx) }

func (w *Window) Focus(ctx context.Context) error { return w.backend.Focus(ctx) }

func (w *Window) indexLocked(id int) int {
	for i, v := range w.views {
		if v.ID() == id {
			return i
		}
	}
	return -1
}

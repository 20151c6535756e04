// Package container owns the web-content surfaces that back tabs: the pool of
// pre-warmed surfaces and the registry of surfaces attached to open tabs.
package container

import (
	"context"

	"github.com/dgnsrekt/tabshell/internal/types"
)

// Surface is one web-content surface provided by the hosting facility.
// Implementations invoke Hooks asynchronously, never on a goroutine that the
// surface itself needs to complete a call.
type Surface interface {
	// ID is assigned by the hosting facility and is unique for the process.
	ID() int
	LoadURL(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	ExecuteJavaScript(ctx context.Context, script string) error
	Title(ctx context.Context) (string, error)
	SetBounds(ctx context.Context, b types.Bounds) error
	Focus(ctx context.Context) error
	Close(ctx context.Context) error
	Destroyed() bool
	SetHooks(h Hooks)
}

// Hooks are lifecycle callbacks reported by the hosting facility.
type Hooks struct {
	DOMReady   func()
	Gone       func(reason string)
	WindowOpen func(url string)
}

// Factory creates fresh, not-yet-loaded surfaces.
type Factory interface {
	NewSurface(ctx context.Context) (Surface, error)
}

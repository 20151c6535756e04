package container

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/tabshell/internal/bus"
)

const titleTimeout = 5 * time.Second

// Options tune how a container behaves once it backs a tab.
type Options struct {
	// TrackTitle emits bus.EventTabTitle when the page title is first known.
	TrackTitle     bool
	UseLoadingView bool
	UseErrorView   bool
	// OnWindowOpen receives URLs the page tried to open in a new window.
	OnWindowOpen func(url string)
	// OnGone receives crash and detach reports for the container.
	OnGone func(id int, reason string)
}

// Container wraps a Surface with the state the orchestrator tracks for it.
type Container struct {
	surface Surface
	bus     *bus.Bus

	mu          sync.Mutex
	opts        Options
	url         string
	title       string
	initialized bool
}

func New(surface Surface, b *bus.Bus) *Container {
	return &Container{surface: surface, bus: b}
}

func (c *Container) ID() int { return c.surface.ID() }

func (c *Container) Surface() Surface { return c.surface }

// SetOptions replaces the container options.
func (c *Container) SetOptions(opts Options) {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
}

func (c *Container) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// URL returns the address last passed to LoadURL, or "" before the first load.
func (c *Container) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

func (c *Container) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Container) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// SetTitle stores title and, when title tracking is enabled, announces it.
func (c *Container) SetTitle(title string) {
	c.mu.Lock()
	c.title = title
	track := c.opts.TrackTitle
	c.mu.Unlock()

	if track && c.bus != nil {
		c.bus.EmitNamed(bus.EventTabTitle, map[string]any{"id": c.ID(), "title": title})
	}
}

// LoadURL points the container at url. The first call wires the lifecycle
// hooks of the underlying surface.
func (c *Container) LoadURL(ctx context.Context, url string) error {
	c.mu.Lock()
	c.url = url
	setup := !c.initialized
	c.initialized = true
	c.mu.Unlock()

	if setup {
		c.setup()
	}
	return c.surface.LoadURL(ctx, url)
}

// Reload reloads the stored URL, falling back to a plain surface reload.
func (c *Container) Reload(ctx context.Context) error {
	if url := c.URL(); url != "" {
		return c.surface.LoadURL(ctx, url)
	}
	return c.surface.Reload(ctx)
}

// ExecuteJavaScript runs script in the page. Destroyed surfaces are skipped.
func (c *Container) ExecuteJavaScript(ctx context.Context, script string) error {
	if c.surface.Destroyed() {
		return nil
	}
	if err := c.surface.ExecuteJavaScript(ctx, script); err != nil {
		slog.Error("container script failed", "container_id", c.ID(), "error", err)
		return err
	}
	return nil
}

func (c *Container) setup() {
	c.surface.SetHooks(Hooks{
		DOMReady: c.onDOMReady,
		Gone: func(reason string) {
			slog.Error("container content gone", "container_id", c.ID(), "reason", reason)
			if fn := c.Options().OnGone; fn != nil {
				fn(c.ID(), reason)
			}
		},
		WindowOpen: func(url string) {
			if fn := c.Options().OnWindowOpen; fn != nil {
				fn(url)
			}
		},
	})
}

func (c *Container) onDOMReady() {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	title, err := c.surface.Title(ctx)
	if err != nil {
		slog.Debug("container title lookup failed", "container_id", c.ID(), "error", err)
		return
	}
	if c.Title() == "" && title != "" {
		c.SetTitle(title)
	}
}

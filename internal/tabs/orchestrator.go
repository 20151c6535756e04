// Package tabs drives the tab lifecycle: it maps URLs to containers, keeps a
// single foreground container in the window and gates tab creation behind
// the frame-ready barrier.
package tabs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
	"github.com/dgnsrekt/tabshell/internal/window"
)

// DefaultHeaderHeight is the window strip reserved for the tab bar.
const DefaultHeaderHeight = 40

const (
	defaultWindowWidth  = 1024
	defaultWindowHeight = 768
	loadTimeout         = 30 * time.Second
)

// CloseOptions controls CloseTab side effects.
type CloseOptions struct {
	// NotifyView emits bus.EventCloseTab so the tab strip drops the tab.
	NotifyView bool
}

// Orchestrator owns the tab table. The pool and registry it is given must
// not be mutated by anyone else.
type Orchestrator struct {
	pool         *container.Pool
	registry     *container.Registry
	window       *window.Window
	bus          *bus.Bus
	ready        *Barrier
	headerHeight int
	onGone       func(id int, reason string)

	urlLocks *urlLocks

	mu   sync.Mutex
	tabs map[string]int
	urls []string
}

type Option func(*Orchestrator)

// WithHeaderHeight overrides DefaultHeaderHeight.
func WithHeaderHeight(h int) Option {
	return func(o *Orchestrator) {
		if h >= 0 {
			o.headerHeight = h
		}
	}
}

// WithContentGone is told when the content of a tab's container dies.
func WithContentGone(fn func(id int, reason string)) Option {
	return func(o *Orchestrator) { o.onGone = fn }
}

func New(pool *container.Pool, registry *container.Registry, win *window.Window, b *bus.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pool:         pool,
		registry:     registry,
		window:       win,
		bus:          b,
		ready:        NewBarrier(),
		headerHeight: DefaultHeaderHeight,
		urlLocks:     newURLLocks(),
		tabs:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetFrameReady opens the frame-ready barrier. Repeat calls return false and
// have no effect.
func (o *Orchestrator) SetFrameReady() bool {
	opened := o.ready.Open()
	if opened {
		slog.Info("frame ready")
	}
	return opened
}

func (o *Orchestrator) FrameReady() bool { return o.ready.Opened() }

// Ready is closed once the frame signals readiness.
func (o *Orchestrator) Ready() <-chan struct{} { return o.ready.Done() }

// SwitchTab brings the tab for url to the foreground, creating it first when
// no tab has that URL. The work outlives ctx: a caller that gives up gets
// ctx.Err() while the tab is still opened once the frame is ready.
func (o *Orchestrator) SwitchTab(ctx context.Context, url string) (int, error) {
	return o.detached(ctx, func(ctx context.Context) (int, error) {
		if err := o.ready.Wait(ctx); err != nil {
			return 0, err
		}
		release := o.urlLocks.lock(url)
		id, ok := o.lookup(url)
		if !ok {
			var err error
			id, err = o.createTab(ctx, url)
			if err != nil {
				release()
				return 0, err
			}
		}
		release()
		return id, o.SwitchTabWithID(ctx, id, true)
	})
}

// CreateTab opens a tab for url without bringing it to the foreground. A URL
// that already has a tab is switched to instead, so the tab strip sees
// onSwitchTab. Like SwitchTab, the work outlives ctx.
func (o *Orchestrator) CreateTab(ctx context.Context, url string) (int, error) {
	return o.detached(ctx, func(ctx context.Context) (int, error) {
		if err := o.ready.Wait(ctx); err != nil {
			return 0, err
		}
		release := o.urlLocks.lock(url)
		if id, ok := o.lookup(url); ok {
			release()
			return id, o.SwitchTabWithID(ctx, id, true)
		}
		defer release()
		return o.createTab(ctx, url)
	})
}

// detached runs fn on a context that keeps ctx's values but not its
// cancellation, and returns early with ctx.Err() if the caller goes away.
func (o *Orchestrator) detached(ctx context.Context, fn func(context.Context) (int, error)) (int, error) {
	type result struct {
		id  int
		err error
	}
	done := make(chan result, 1)
	work := context.WithoutCancel(ctx)
	go func() {
		id, err := fn(work)
		done <- result{id, err}
	}()
	select {
	case r := <-done:
		return r.id, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// createTab must be called with the url lock held.
func (o *Orchestrator) createTab(ctx context.Context, url string) (int, error) {
	if url == "" {
		return 0, types.NewError(types.CodeValidation, "url is required", nil)
	}
	c, err := o.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	c.SetOptions(container.Options{
		TrackTitle:     true,
		UseLoadingView: true,
		UseErrorView:   true,
		OnWindowOpen:   o.openFromContent,
		OnGone:         o.onGone,
	})
	if err := o.registry.Register(c); err != nil {
		return 0, err
	}

	o.mu.Lock()
	o.window.AddView(c.Surface())
	o.tabs[url] = c.ID()
	o.urls = append(o.urls, url)
	o.mu.Unlock()

	o.applyBounds(ctx, c)
	go o.load(c, url)

	slog.Info("tab created", "container_id", c.ID(), "url", url)
	o.bus.EmitNamed(bus.EventCreateTab, map[string]any{"id": c.ID()})
	return c.ID(), nil
}

func (o *Orchestrator) load(c *container.Container, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := c.LoadURL(ctx, url); err != nil {
		slog.Warn("tab load failed", "container_id", c.ID(), "url", url, "error", err)
	}
}

// SwitchTabWithID attaches the tab's container if needed, raises it and
// detaches every other tab. Unknown ids are ignored. notify is false when the
// request came from the tab strip itself.
func (o *Orchestrator) SwitchTabWithID(ctx context.Context, id int, notify bool) error {
	c, ok := o.registry.Get(id)
	if !ok {
		slog.Debug("switch to unknown tab ignored", "container_id", id)
		return nil
	}

	o.mu.Lock()
	attach := !o.window.Contains(id)
	if attach {
		o.window.AddView(c.Surface())
	}
	err := o.window.SetTopView(ctx, c.Surface())
	for _, otherID := range o.tabs {
		if otherID == id {
			continue
		}
		if other, ok := o.registry.Get(otherID); ok {
			o.window.RemoveView(other.Surface())
		}
	}
	o.mu.Unlock()

	if err != nil {
		return fmt.Errorf("raise tab %d: %w", id, err)
	}
	if attach {
		o.applyBounds(ctx, c)
	}
	if err := o.window.Show(ctx); err != nil {
		slog.Warn("window show failed", "error", err)
	}
	if err := o.window.Focus(ctx); err != nil {
		slog.Warn("window focus failed", "error", err)
	}
	if err := c.Surface().Focus(ctx); err != nil {
		slog.Warn("tab focus failed", "container_id", id, "error", err)
	}

	if notify {
		o.bus.EmitNamed(bus.EventSwitchTab, map[string]any{"id": id})
	}
	return nil
}

// CloseTab detaches and destroys the tab's container. Closing an unknown or
// already closed id is a no-op.
func (o *Orchestrator) CloseTab(ctx context.Context, id int, opts CloseOptions) {
	c, ok := o.registry.Get(id)
	if !ok {
		return
	}

	o.mu.Lock()
	o.window.RemoveView(c.Surface())
	o.forgetLocked(id)
	o.mu.Unlock()

	if !o.registry.Remove(ctx, id) {
		return
	}
	slog.Info("tab closed", "container_id", id)
	if opts.NotifyView {
		o.bus.EmitNamed(bus.EventCloseTab, map[string]any{"id": id})
	}
}

// CloseTabByURL closes the tab for url and notifies the tab strip.
func (o *Orchestrator) CloseTabByURL(ctx context.Context, url string) {
	if id, ok := o.lookup(url); ok {
		o.CloseTab(ctx, id, CloseOptions{NotifyView: true})
	}
}

// CloseCurrentTab closes whatever container is in the foreground.
func (o *Orchestrator) CloseCurrentTab(ctx context.Context) {
	if top, ok := o.window.TopView(); ok {
		o.CloseTab(ctx, top.ID(), CloseOptions{NotifyView: true})
	}
}

// ReloadCurrentTab reloads the foreground container.
func (o *Orchestrator) ReloadCurrentTab(ctx context.Context) error {
	top, ok := o.window.TopView()
	if !ok {
		return nil
	}
	c, ok := o.registry.Get(top.ID())
	if !ok {
		return nil
	}
	return c.Reload(ctx)
}

// CloseAllTabs closes every tab in opening order, then destroys any surface
// still attached to the window.
func (o *Orchestrator) CloseAllTabs(ctx context.Context) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.urls))
	for _, url := range o.urls {
		ids = append(ids, o.tabs[url])
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.CloseTab(ctx, id, CloseOptions{})
	}

	o.mu.Lock()
	o.tabs = make(map[string]int)
	o.urls = nil
	leftovers := o.window.Views()
	for _, v := range leftovers {
		o.window.RemoveView(v)
	}
	o.mu.Unlock()

	for _, v := range leftovers {
		if err := v.Close(ctx); err != nil {
			slog.Warn("leftover surface close failed", "container_id", v.ID(), "error", err)
		}
	}
	slog.Info("all tabs closed", "tabs", len(ids), "leftovers", len(leftovers))
}

// CurrentTab returns the id of the foreground container.
func (o *Orchestrator) CurrentTab() (int, bool) {
	top, ok := o.window.TopView()
	if !ok {
		return 0, false
	}
	return top.ID(), true
}

// TabID resolves url to its container id.
func (o *Orchestrator) TabID(url string) (int, bool) { return o.lookup(url) }

// Tabs lists open tabs in opening order.
func (o *Orchestrator) Tabs() []types.TabInfo {
	o.mu.Lock()
	urls := append([]string(nil), o.urls...)
	ids := make([]int, len(urls))
	for i, url := range urls {
		ids[i] = o.tabs[url]
	}
	o.mu.Unlock()

	top, _ := o.CurrentTab()
	out := make([]types.TabInfo, 0, len(urls))
	for i, url := range urls {
		c, ok := o.registry.Get(ids[i])
		if !ok {
			continue
		}
		info := types.TabInfo{
			ID:       ids[i],
			URL:      url,
			Title:    c.Title(),
			State:    types.TabInactive,
			Attached: o.window.Contains(ids[i]),
		}
		switch {
		case ids[i] == top && info.Attached:
			info.State = types.TabActive
		case !c.Initialized():
			info.State = types.TabCreated
		}
		out = append(out, info)
	}
	return out
}

// Len returns the number of open tabs.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tabs)
}

// Focus focuses the host window.
func (o *Orchestrator) Focus(ctx context.Context) error {
	return o.window.Focus(ctx)
}

func (o *Orchestrator) lookup(url string) (int, bool) {
	o.mu.Lock()
	id, ok := o.tabs[url]
	o.mu.Unlock()
	if !ok {
		return 0, false
	}
	if _, live := o.registry.Get(id); !live {
		return 0, false
	}
	return id, true
}

func (o *Orchestrator) forgetLocked(id int) {
	for url, tabID := range o.tabs {
		if tabID != id {
			continue
		}
		delete(o.tabs, url)
		for i, u := range o.urls {
			if u == url {
				o.urls = append(o.urls[:i], o.urls[i+1:]...)
				break
			}
		}
	}
}

// applyBounds places c below the tab strip, filling the rest of the window.
func (o *Orchestrator) applyBounds(ctx context.Context, c *container.Container) {
	win, err := o.window.ContentBounds(ctx)
	if err != nil {
		slog.Debug("window bounds unavailable", "error", err)
	}
	if win.Width <= 0 {
		win.Width = defaultWindowWidth
	}
	if win.Height <= 0 {
		win.Height = defaultWindowHeight
	}
	b := types.Bounds{X: 0, Y: o.headerHeight, Width: win.Width, Height: win.Height - o.headerHeight}
	if err := c.Surface().SetBounds(ctx, b); err != nil {
		slog.Warn("tab bounds failed", "container_id", c.ID(), "error", err)
	}
}

// openFromContent routes window.open calls from tab content to SwitchTab.
func (o *Orchestrator) openFromContent(url string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if _, err := o.SwitchTab(ctx, url); err != nil {
			slog.Warn("window open routing failed", "url", url, "error", err)
		}
	}()
}

// OpenFromContent is the window-open handler for surfaces outside the tab
// table, such as the frame.
func (o *Orchestrator) OpenFromContent(url string) { o.openFromContent(url) }

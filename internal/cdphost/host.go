// Package cdphost hosts tab content in Chromium page targets driven over the
// Chrome DevTools Protocol.
package cdphost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
)

const (
	DefaultEvalTimeout = 5 * time.Second
	MinEvalTimeout     = time.Second
	blankURL           = "about:blank"
)

// BindingHandler answers one bridge call made from page content.
type BindingHandler func(ctx context.Context, msg bridge.Message) (any, error)

type Options struct {
	// EvalTimeout bounds every CDP command issued by the host.
	EvalTimeout time.Duration
	// BindingName is the page global the bridge binding is installed as.
	BindingName string
	// BindingTimeout bounds a single bridge call.
	BindingTimeout time.Duration
}

// Host creates and tracks page targets. It implements container.Factory.
type Host struct {
	conn           *Conn
	timeout        time.Duration
	bindingName    string
	bindingTimeout time.Duration

	nextID atomic.Int64

	mu         sync.RWMutex
	byTarget   map[target.ID]*Surface
	bySession  map[string]*Surface
	frame      *Surface
	frameHooks container.Hooks
	handler    BindingHandler
	unsubs     []func()
}

func NewHost(conn *Conn, opts Options) *Host {
	if opts.EvalTimeout <= 0 {
		opts.EvalTimeout = DefaultEvalTimeout
	}
	if opts.EvalTimeout < MinEvalTimeout {
		opts.EvalTimeout = MinEvalTimeout
	}
	if opts.BindingName == "" {
		opts.BindingName = DefaultBindingName
	}
	if opts.BindingTimeout <= 0 {
		opts.BindingTimeout = 30 * time.Second
	}
	return &Host{
		conn:           conn,
		timeout:        opts.EvalTimeout,
		bindingName:    opts.BindingName,
		bindingTimeout: opts.BindingTimeout,
		byTarget:       make(map[target.ID]*Surface),
		bySession:      make(map[string]*Surface),
	}
}

// SetBindingHandler installs the handler for bridge calls from any surface.
func (h *Host) SetBindingHandler(fn BindingHandler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// Start subscribes to the CDP events the host reacts to and enables target
// discovery so popups can be intercepted.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	h.unsubs = append(h.unsubs,
		h.conn.On(cdproto.EventPageDomContentEventFired, h.onDOMContent),
		h.conn.On(cdproto.EventInspectorTargetCrashed, h.onCrashed),
		h.conn.On(cdproto.EventPageWindowOpen, h.onWindowOpen),
		h.conn.On(cdproto.EventRuntimeBindingCalled, h.onBindingCalled),
		h.conn.On(cdproto.EventTargetTargetCreated, h.onTargetCreated),
		h.conn.On(cdproto.EventTargetTargetDestroyed, h.onTargetDestroyed),
	)
	h.mu.Unlock()

	if err := h.call(ctx, "", target.CommandSetDiscoverTargets, target.SetDiscoverTargets(true), nil); err != nil {
		return types.NewError(types.CodeHostUnavailable, "failed to enable target discovery", err)
	}
	return nil
}

// Stop unsubscribes the host from CDP events.
func (h *Host) Stop() {
	h.mu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
}

// NewSurface creates a background page target ready to back a tab.
func (h *Host) NewSurface(ctx context.Context) (container.Surface, error) {
	var created struct {
		TargetID target.ID `json:"targetId"`
	}
	params := target.CreateTarget(blankURL).WithBackground(true)
	if err := h.call(ctx, "", target.CommandCreateTarget, params, &created); err != nil {
		return nil, types.NewError(types.CodeHostUnavailable, "failed to create page target", err)
	}
	return h.adopt(ctx, created.TargetID)
}

// AttachFrame adopts the UI frame page, creating it when no page target
// shows frameURL. An existing frame is reloaded so its startup runs with the
// bridge installed.
func (h *Host) AttachFrame(ctx context.Context, frameURL string) (*Surface, error) {
	targets, err := h.conn.ListTargets(ctx)
	if err != nil {
		return nil, types.NewError(types.CodeHostUnavailable, "failed to list targets", err)
	}

	var targetID target.ID
	for _, t := range targets {
		if t.Type == "page" && strings.HasPrefix(t.URL, frameURL) {
			targetID = t.TargetID
			break
		}
	}
	reload := targetID != ""
	if !reload {
		var created struct {
			TargetID target.ID `json:"targetId"`
		}
		params := target.CreateTarget(blankURL).WithNewWindow(true)
		if err := h.call(ctx, "", target.CommandCreateTarget, params, &created); err != nil {
			return nil, types.NewError(types.CodeHostUnavailable, "failed to create frame target", err)
		}
		targetID = created.TargetID
	}

	s, err := h.adopt(ctx, targetID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.frame = s
	hooks := h.frameHooks
	h.mu.Unlock()
	s.SetHooks(hooks)

	if reload {
		err = s.Reload(ctx)
	} else {
		err = s.LoadURL(ctx, frameURL)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("frame attached", "target_id", targetID, "url", frameURL, "reused", reload)
	return s, nil
}

// Frame returns the attached UI frame, or nil.
func (h *Host) Frame() *Surface {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame
}

// SetFrameHooks installs the hooks the UI frame surface gets. Hooks set before
// AttachFrame are in place before the frame starts loading.
func (h *Host) SetFrameHooks(hooks container.Hooks) {
	h.mu.Lock()
	h.frameHooks = hooks
	frame := h.frame
	h.mu.Unlock()
	if frame != nil {
		frame.SetHooks(hooks)
	}
}

// FrameRunner returns a bridge.ScriptRunner that resolves the frame on every
// call, so it can be handed out before AttachFrame. Scripts sent while no
// frame is attached are dropped.
func (h *Host) FrameRunner() bridge.ScriptRunner { return frameRunner{h} }

type frameRunner struct{ h *Host }

func (r frameRunner) ExecuteJavaScript(ctx context.Context, script string) error {
	frame := r.h.Frame()
	if frame == nil {
		return nil
	}
	return frame.ExecuteJavaScript(ctx, script)
}

// OwnedTargets returns every live target the host created or adopted.
func (h *Host) OwnedTargets() map[target.ID]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[target.ID]bool, len(h.byTarget))
	for id := range h.byTarget {
		out[id] = true
	}
	return out
}

func (h *Host) adopt(ctx context.Context, targetID target.ID) (*Surface, error) {
	sessionID, err := h.conn.AttachToTarget(ctx, targetID)
	if err != nil {
		h.closeTarget(targetID)
		return nil, types.NewError(types.CodeSurfaceFailure, "failed to attach to target", err)
	}

	s := &Surface{
		host:      h,
		id:        int(h.nextID.Add(1)),
		targetID:  targetID,
		sessionID: sessionID,
	}
	h.mu.Lock()
	h.byTarget[targetID] = s
	h.bySession[sessionID] = s
	h.mu.Unlock()

	if err := h.prepare(ctx, s); err != nil {
		_ = s.Close(context.Background())
		return nil, types.NewError(types.CodeSurfaceFailure, "failed to prepare target", err)
	}
	slog.Debug("surface ready", "container_id", s.id, "target_id", targetID)
	return s, nil
}

func (h *Host) prepare(ctx context.Context, s *Surface) error {
	steps := []struct {
		method string
		params any
	}{
		{page.CommandEnable, nil},
		{runtime.CommandEnable, nil},
		{inspector.CommandEnable, nil},
		{runtime.CommandAddBinding, runtime.AddBinding(h.bindingName)},
		{page.CommandAddScriptToEvaluateOnNewDocument, page.AddScriptToEvaluateOnNewDocument(preloadScript(h.bindingName))},
	}
	for _, step := range steps {
		if err := h.call(ctx, s.sessionID, step.method, step.params, nil); err != nil {
			return fmt.Errorf("%s: %w", step.method, err)
		}
	}
	return nil
}

func (h *Host) call(ctx context.Context, sessionID, method string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.conn.Call(ctx, sessionID, method, params, out)
}

func (h *Host) closeTarget(targetID target.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.conn.Call(ctx, "", target.CommandCloseTarget, target.CloseTarget(targetID), nil); err != nil {
		slog.Debug("close target failed", "target_id", targetID, "error", err)
	}
}

func (h *Host) forget(s *Surface) {
	h.mu.Lock()
	delete(h.byTarget, s.targetID)
	delete(h.bySession, s.sessionID)
	if h.frame == s {
		h.frame = nil
	}
	h.mu.Unlock()
}

func (h *Host) bySessionID(sessionID string) *Surface {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bySession[sessionID]
}

// Event handlers run on the CDP read loop; anything that issues commands is
// moved to its own goroutine.

func (h *Host) onDOMContent(sessionID string, _ json.RawMessage) {
	if s := h.bySessionID(sessionID); s != nil {
		go s.fireDOMReady()
	}
}

func (h *Host) onCrashed(sessionID string, _ json.RawMessage) {
	if s := h.bySessionID(sessionID); s != nil {
		go s.fireGone("crashed")
	}
}

func (h *Host) onWindowOpen(sessionID string, params json.RawMessage) {
	s := h.bySessionID(sessionID)
	if s == nil {
		return
	}
	var ev page.EventWindowOpen
	if err := json.Unmarshal(params, &ev); err != nil || ev.URL == "" {
		return
	}
	go s.fireWindowOpen(ev.URL)
}

func (h *Host) onTargetCreated(_ string, params json.RawMessage) {
	var ev struct {
		TargetInfo struct {
			TargetID target.ID `json:"targetId"`
			Type     string    `json:"type"`
			OpenerID target.ID `json:"openerId"`
		} `json:"targetInfo"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	info := ev.TargetInfo
	if info.Type != "page" || info.OpenerID == "" {
		return
	}
	h.mu.RLock()
	_, fromOwned := h.byTarget[info.OpenerID]
	h.mu.RUnlock()
	if !fromOwned {
		return
	}
	slog.Debug("popup denied", "target_id", info.TargetID, "opener_id", info.OpenerID)
	go h.closeTarget(info.TargetID)
}

func (h *Host) onTargetDestroyed(_ string, params json.RawMessage) {
	var ev struct {
		TargetID target.ID `json:"targetId"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	h.mu.RLock()
	s := h.byTarget[ev.TargetID]
	h.mu.RUnlock()
	if s == nil {
		return
	}
	s.destroyed.Store(true)
	h.forget(s)
	slog.Debug("surface destroyed", "container_id", s.id, "target_id", ev.TargetID)
}

func (h *Host) onBindingCalled(sessionID string, params json.RawMessage) {
	var ev runtime.EventBindingCalled
	if err := json.Unmarshal(params, &ev); err != nil || ev.Name != h.bindingName {
		return
	}
	s := h.bySessionID(sessionID)
	if s == nil {
		return
	}
	go h.serveBinding(s, ev.Payload)
}

package cdphost

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Surface is one page target attached over a flat session.
type Surface struct {
	host      *Host
	id        int
	targetID  target.ID
	sessionID string

	destroyed atomic.Bool

	hooksMu sync.Mutex
	hooks   container.Hooks
}

func (s *Surface) ID() int { return s.id }

func (s *Surface) TargetID() target.ID { return s.targetID }

func (s *Surface) LoadURL(ctx context.Context, url string) error {
	var result struct {
		ErrorText string `json:"errorText"`
	}
	if err := s.host.call(ctx, s.sessionID, page.CommandNavigate, page.Navigate(url), &result); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "navigate failed", err)
	}
	if result.ErrorText != "" {
		return types.NewError(types.CodeSurfaceFailure, "navigate failed: "+result.ErrorText, nil)
	}
	return nil
}

func (s *Surface) Reload(ctx context.Context) error {
	if err := s.host.call(ctx, s.sessionID, page.CommandReload, page.Reload(), nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "reload failed", err)
	}
	return nil
}

func (s *Surface) ExecuteJavaScript(ctx context.Context, script string) error {
	ctx, cancel := context.WithTimeout(ctx, s.host.timeout)
	defer cancel()
	if _, err := s.host.conn.Evaluate(ctx, s.sessionID, script); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "evaluate failed", err)
	}
	return nil
}

func (s *Surface) Title(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.host.timeout)
	defer cancel()
	return s.host.conn.Evaluate(ctx, s.sessionID, "document.title")
}

// SetBounds sizes the page viewport. Targets cannot be offset inside a
// window, so X and Y only matter to the tab strip layout.
func (s *Surface) SetBounds(ctx context.Context, b types.Bounds) error {
	if b.Width <= 0 || b.Height <= 0 {
		return types.NewError(types.CodeValidation, "bounds must have a positive size", nil)
	}
	params := emulation.SetDeviceMetricsOverride(int64(b.Width), int64(b.Height), 0, false)
	if err := s.host.call(ctx, s.sessionID, emulation.CommandSetDeviceMetricsOverride, params, nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "set bounds failed", err)
	}
	return nil
}

// Focus activates the target and brings its page to the front.
func (s *Surface) Focus(ctx context.Context) error {
	if err := s.activate(ctx); err != nil {
		return err
	}
	if err := s.host.call(ctx, s.sessionID, page.CommandBringToFront, page.BringToFront(), nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "bring to front failed", err)
	}
	return nil
}

func (s *Surface) activate(ctx context.Context) error {
	if err := s.host.call(ctx, "", target.CommandActivateTarget, target.ActivateTarget(s.targetID), nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "activate target failed", err)
	}
	return nil
}

// Close destroys the page target. Closing twice is a no-op.
func (s *Surface) Close(ctx context.Context) error {
	if s.destroyed.Swap(true) {
		return nil
	}
	s.host.forget(s)
	if err := s.host.call(ctx, "", target.CommandCloseTarget, target.CloseTarget(s.targetID), nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "close target failed", err)
	}
	return nil
}

func (s *Surface) Destroyed() bool { return s.destroyed.Load() }

func (s *Surface) SetHooks(h container.Hooks) {
	s.hooksMu.Lock()
	s.hooks = h
	s.hooksMu.Unlock()
}

func (s *Surface) currentHooks() container.Hooks {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	return s.hooks
}

func (s *Surface) fireDOMReady() {
	if fn := s.currentHooks().DOMReady; fn != nil {
		fn()
	}
}

func (s *Surface) fireGone(reason string) {
	if fn := s.currentHooks().Gone; fn != nil {
		fn(reason)
		return
	}
	slog.Error("page target gone", "container_id", s.id, "target_id", s.targetID, "reason", reason)
}

func (s *Surface) fireWindowOpen(url string) {
	if fn := s.currentHooks().WindowOpen; fn != nil {
		fn(url)
		return
	}
	slog.Debug("window open ignored", "container_id", s.id, "url", url)
}

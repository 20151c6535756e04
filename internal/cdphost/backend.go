package cdphost

import (
	"context"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// WindowBackend drives the browser window that shows the UI frame.
type WindowBackend struct {
	host *Host
}

func NewWindowBackend(h *Host) *WindowBackend {
	return &WindowBackend{host: h}
}

type windowInfo struct {
	WindowID browser.WindowID `json:"windowId"`
	Bounds   struct {
		Left   int64 `json:"left"`
		Top    int64 `json:"top"`
		Width  int64 `json:"width"`
		Height int64 `json:"height"`
	} `json:"bounds"`
}

func (b *WindowBackend) window(ctx context.Context) (windowInfo, error) {
	var info windowInfo
	frame := b.host.Frame()
	if frame == nil {
		return info, types.NewError(types.CodeHostUnavailable, "frame is not attached", nil)
	}
	params := browser.GetWindowForTarget().WithTargetID(frame.targetID)
	if err := b.host.call(ctx, "", browser.CommandGetWindowForTarget, params, &info); err != nil {
		return info, types.NewError(types.CodeHostUnavailable, "failed to get frame window", err)
	}
	return info, nil
}

func (b *WindowBackend) ContentBounds(ctx context.Context) (types.Bounds, error) {
	info, err := b.window(ctx)
	if err != nil {
		return types.Bounds{}, err
	}
	return types.Bounds{
		X:      int(info.Bounds.Left),
		Y:      int(info.Bounds.Top),
		Width:  int(info.Bounds.Width),
		Height: int(info.Bounds.Height),
	}, nil
}

// Raise activates the page target behind surface.
func (b *WindowBackend) Raise(ctx context.Context, surface container.Surface) error {
	s, ok := surface.(*Surface)
	if !ok {
		return types.NewError(types.CodeValidation, "surface is not a page target", nil)
	}
	return s.activate(ctx)
}

// Show restores the frame window from minimized or hidden states.
func (b *WindowBackend) Show(ctx context.Context) error {
	info, err := b.window(ctx)
	if err != nil {
		return err
	}
	params := browser.SetWindowBounds(info.WindowID, &browser.Bounds{WindowState: browser.WindowStateNormal})
	if err := b.host.call(ctx, "", browser.CommandSetWindowBounds, params, nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "failed to show window", err)
	}
	return nil
}

// Focus brings the frame window to the front.
func (b *WindowBackend) Focus(ctx context.Context) error {
	frame := b.host.Frame()
	if frame == nil {
		return types.NewError(types.CodeHostUnavailable, "frame is not attached", nil)
	}
	if err := b.host.call(ctx, "", target.CommandActivateTarget, target.ActivateTarget(frame.targetID), nil); err != nil {
		return types.NewError(types.CodeSurfaceFailure, "failed to focus window", err)
	}
	return b.host.call(ctx, frame.sessionID, page.CommandBringToFront, page.BringToFront(), nil)
}

package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/tabshell/internal/tabs"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Tabs is the part of the orchestrator the bridge drives.
type Tabs interface {
	CloseTab(ctx context.Context, id int, opts tabs.CloseOptions)
	SetFrameReady() bool
	SwitchTabWithID(ctx context.Context, id int, notify bool) error
	CreateTab(ctx context.Context, url string) (int, error)
}

// ObserveFunc is told about every handled request.
type ObserveFunc func(requestType string, err error)

// Service answers bridge requests.
type Service struct {
	tabs    Tabs
	observe ObserveFunc
}

func NewService(t Tabs, observe ObserveFunc) *Service {
	return &Service{tabs: t, observe: observe}
}

// Call decodes msg and handles it. The result is the response payload; nil
// means the handler had nothing to return.
func (s *Service) Call(ctx context.Context, msg Message) (any, error) {
	req, err := Decode(msg)
	if err != nil {
		s.record(msg.Type, err)
		return nil, err
	}
	return s.Handle(ctx, req)
}

// Handle runs one decoded request.
func (s *Service) Handle(ctx context.Context, req Request) (any, error) {
	out, err := s.handle(ctx, req)
	s.record(req.Type(), err)
	return out, err
}

func (s *Service) handle(ctx context.Context, req Request) (any, error) {
	switch r := req.(type) {
	case CloseTabOnTabPage:
		s.tabs.CloseTab(ctx, r.ID, tabs.CloseOptions{})
		return map[string]any{}, nil
	case FrameDidReadyOnTabPage:
		s.tabs.SetFrameReady()
		return map[string]any{}, nil
	case SwitchTabOnWindow:
		return nil, s.tabs.SwitchTabWithID(ctx, r.ID, false)
	case CreateTabOnWindow:
		id, err := s.tabs.CreateTab(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil
	}
	return nil, types.NewError(types.CodeUnimplementedMethod, fmt.Sprintf("%T is not handled", req), nil)
}

func (s *Service) record(requestType string, err error) {
	if err != nil {
		slog.Warn("bridge request failed", "type", requestType, "error", err)
	} else {
		slog.Debug("bridge request", "type", requestType)
	}
	if s.observe != nil {
		s.observe(requestType, err)
	}
}

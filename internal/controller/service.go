// Package controller exposes the tab orchestrator to the HTTP control API.
package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/tabs"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Sweeper closes host targets no component owns.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Health is a point-in-time view of the shell.
type Health struct {
	Status     string `json:"status"`
	FrameReady bool   `json:"frame_ready"`
	PoolIdle   int    `json:"pool_idle"`
	Containers int    `json:"containers"`
	OpenTabs   int    `json:"open_tabs"`
	CurrentTab int    `json:"current_tab,omitempty"`
}

// Service wraps tab control operations for API callers.
type Service struct {
	tabs     *tabs.Orchestrator
	bridge   *bridge.Service
	pool     *container.Pool
	registry *container.Registry
	sweeper  Sweeper
}

func NewService(orch *tabs.Orchestrator, br *bridge.Service, pool *container.Pool, registry *container.Registry, sweeper Sweeper) *Service {
	return &Service{tabs: orch, bridge: br, pool: pool, registry: registry, sweeper: sweeper}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return types.NewError(types.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

func (s *Service) requireReady() error {
	if !s.tabs.FrameReady() {
		return types.NewError(types.CodeHostUnavailable, "frame has not signalled ready", nil)
	}
	return nil
}

func (s *Service) requireTab(id int) error {
	if _, ok := s.registry.Get(id); !ok {
		return types.NewError(types.CodeUnknownContainer, fmt.Sprintf("no tab with id %d", id), nil)
	}
	return nil
}

// Bridge dispatches a bridge message exactly as the UI frame would.
func (s *Service) Bridge(ctx context.Context, msg bridge.Message) (any, error) {
	return s.bridge.Call(ctx, msg)
}

func (s *Service) ListTabs(ctx context.Context) ([]types.TabInfo, error) {
	return s.tabs.Tabs(), nil
}

// SwitchTab opens url in the foreground, creating its tab when needed.
func (s *Service) SwitchTab(ctx context.Context, url string) (types.TabInfo, error) {
	url = strings.TrimSpace(url)
	if err := s.requireNonEmpty(url, "url"); err != nil {
		return types.TabInfo{}, err
	}
	if err := s.requireReady(); err != nil {
		return types.TabInfo{}, err
	}
	id, err := s.tabs.SwitchTab(ctx, url)
	if err != nil {
		return types.TabInfo{}, err
	}
	return s.tabInfo(id), nil
}

func (s *Service) ActivateTab(ctx context.Context, id int) (types.TabInfo, error) {
	if err := s.requireTab(id); err != nil {
		return types.TabInfo{}, err
	}
	if err := s.tabs.SwitchTabWithID(ctx, id, true); err != nil {
		return types.TabInfo{}, err
	}
	return s.tabInfo(id), nil
}

func (s *Service) CloseTab(ctx context.Context, id int) error {
	if err := s.requireTab(id); err != nil {
		return err
	}
	s.tabs.CloseTab(ctx, id, tabs.CloseOptions{NotifyView: true})
	return nil
}

func (s *Service) CloseTabByURL(ctx context.Context, url string) (int, error) {
	url = strings.TrimSpace(url)
	if err := s.requireNonEmpty(url, "url"); err != nil {
		return 0, err
	}
	id, ok := s.tabs.TabID(url)
	if !ok {
		return 0, types.NewError(types.CodeUnknownContainer, "no tab for url "+url, nil)
	}
	s.tabs.CloseTab(ctx, id, tabs.CloseOptions{NotifyView: true})
	return id, nil
}

// CloseCurrentTab closes the foreground tab and reports its id.
func (s *Service) CloseCurrentTab(ctx context.Context) (int, error) {
	id, ok := s.tabs.CurrentTab()
	if !ok {
		return 0, types.NewError(types.CodeUnknownContainer, "no foreground tab", nil)
	}
	s.tabs.CloseTab(ctx, id, tabs.CloseOptions{NotifyView: true})
	return id, nil
}

// CloseAllTabs closes every tab and reports how many were open.
func (s *Service) CloseAllTabs(ctx context.Context) (int, error) {
	n := s.tabs.Len()
	s.tabs.CloseAllTabs(ctx)
	return n, nil
}

func (s *Service) ReloadCurrentTab(ctx context.Context) error {
	return s.tabs.ReloadCurrentTab(ctx)
}

func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	if s.sweeper == nil {
		return 0, types.NewError(types.CodeHostUnavailable, "orphan sweeper not configured", nil)
	}
	return s.sweeper.Sweep(ctx)
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	h := Health{
		Status:     "ok",
		FrameReady: s.tabs.FrameReady(),
		PoolIdle:   s.pool.Idle(),
		Containers: s.registry.Len(),
		OpenTabs:   s.tabs.Len(),
	}
	if id, ok := s.tabs.CurrentTab(); ok {
		h.CurrentTab = id
	}
	if !h.FrameReady {
		h.Status = "starting"
	}
	return h, nil
}

func (s *Service) tabInfo(id int) types.TabInfo {
	for _, info := range s.tabs.Tabs() {
		if info.ID == id {
			return info
		}
	}
	return types.TabInfo{ID: id, State: types.TabAbsent}
}

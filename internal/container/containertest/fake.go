// Package containertest provides in-memory surfaces for tests.
package containertest

import (
	"context"
	"errors"
	"sync"

	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Surface records every call made against it.
type Surface struct {
	id int

	mu        sync.Mutex
	loaded    []string
	reloads   int
	scripts   []string
	bounds    []types.Bounds
	focused   int
	closed    int
	title     string
	hooks     container.Hooks
	scriptErr error
}

func NewSurface(id int) *Surface { return &Surface{id: id} }

func (s *Surface) ID() int { return s.id }

func (s *Surface) LoadURL(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
	return nil
}

func (s *Surface) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return nil
}

func (s *Surface) ExecuteJavaScript(_ context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scriptErr != nil {
		return s.scriptErr
	}
	s.scripts = append(s.scripts, script)
	return nil
}

func (s *Surface) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, nil
}

func (s *Surface) SetBounds(_ context.Context, b types.Bounds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = append(s.bounds, b)
	return nil
}

func (s *Surface) Focus(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused++
	return nil
}

func (s *Surface) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *Surface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}

func (s *Surface) SetHooks(h container.Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// SetTitle sets the title the page reports.
func (s *Surface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// FailScripts makes ExecuteJavaScript return err.
func (s *Surface) FailScripts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scriptErr = err
}

// FireDOMReady invokes the DOMReady hook synchronously.
func (s *Surface) FireDOMReady() {
	s.mu.Lock()
	fn := s.hooks.DOMReady
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FireWindowOpen invokes the WindowOpen hook synchronously.
func (s *Surface) FireWindowOpen(url string) {
	s.mu.Lock()
	fn := s.hooks.WindowOpen
	s.mu.Unlock()
	if fn != nil {
		fn(url)
	}
}

// FireGone invokes the Gone hook synchronously.
func (s *Surface) FireGone(reason string) {
	s.mu.Lock()
	fn := s.hooks.Gone
	s.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func (s *Surface) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loaded...)
}

func (s *Surface) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

func (s *Surface) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

func (s *Surface) Bounds() []types.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Bounds(nil), s.bounds...)
}

func (s *Surface) Focused() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *Surface) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Factory hands out Surfaces with increasing ids starting at 1.
type Factory struct {
	mu       sync.Mutex
	next     int
	created  []*Surface
	failNext int
}

func (f *Factory) NewSurface(context.Context) (container.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("surface creation failed")
	}
	f.next++
	s := NewSurface(f.next)
	f.created = append(f.created, s)
	return s, nil
}

// FailNext makes the next n creations fail.
func (f *Factory) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

// Created returns every surface handed out so far.
func (f *Factory) Created() []*Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Surface(nil), f.created...)
}

// Get returns the surface with id, or nil.
func (f *Factory) Get(id int) *Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.created {
		if s.id == id {
			return s
		}
	}
	return nil
}

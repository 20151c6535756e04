package tabs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/container/containertest"
	"github.com/dgnsrekt/tabshell/internal/tabs"
	"github.com/dgnsrekt/tabshell/internal/types"
	"github.com/dgnsrekt/tabshell/internal/window"
)

type fakeBackend struct {
	mu     sync.Mutex
	raised []int
}

func (b *fakeBackend) ContentBounds(context.Context) (types.Bounds, error) {
	return types.Bounds{Width: 800, Height: 600}, nil
}

func (b *fakeBackend) Raise(_ context.Context, s container.Surface) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raised = append(b.raised, s.ID())
	return nil
}

func (b *fakeBackend) Show(context.Context) error  { return nil }
func (b *fakeBackend) Focus(context.Context) error { return nil }

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) handle(e bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) named(name string) []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bus.Event
	for _, e := range r.events {
		if e.EventName == name {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	factory  *containertest.Factory
	pool     *container.Pool
	registry *container.Registry
	window   *window.Window
	orch     *tabs.Orchestrator
	events   *recorder
}

func newHarness(t *testing.T, ready bool) *harness {
	t.Helper()
	b := bus.New()
	h := &harness{
		factory:  &containertest.Factory{},
		registry: container.NewRegistry(),
		window:   window.New(&fakeBackend{}),
		events:   &recorder{},
	}
	b.Subscribe(h.events.handle)
	h.pool = container.NewPool(h.factory, b, 1)
	if err := h.pool.Fill(context.Background()); err != nil {
		t.Fatalf("Fill() = %v; want nil", err)
	}
	h.orch = tabs.New(h.pool, h.registry, h.window, b)
	if ready {
		h.orch.SetFrameReady()
	}
	return h
}

func (h *harness) attachedIDs() []int {
	var ids []int
	for _, v := range h.window.Views() {
		ids = append(ids, v.ID())
	}
	return ids
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSwitchTab_DedupesURL(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	first, err := h.orch.SwitchTab(ctx, "https://a")
	if err != nil {
		t.Fatalf("SwitchTab() = %v; want nil", err)
	}
	second, err := h.orch.SwitchTab(ctx, "https://a")
	if err != nil {
		t.Fatalf("SwitchTab() = %v; want nil", err)
	}

	if first != second {
		t.Fatalf("SwitchTab() ids = %d, %d; want equal", first, second)
	}
	if h.registry.Len() != 1 {
		t.Fatalf("registry.Len() = %d; want 1", h.registry.Len())
	}
	if got := len(h.events.named(bus.EventCreateTab)); got != 1 {
		t.Fatalf("onCreateTab events = %d; want 1", got)
	}
}

func TestSwitchTab_OnlyTargetAttached(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.orch.CreateTab(ctx, "https://a")
	if err != nil {
		t.Fatalf("CreateTab(a) = %v; want nil", err)
	}
	b, err := h.orch.CreateTab(ctx, "https://b")
	if err != nil {
		t.Fatalf("CreateTab(b) = %v; want nil", err)
	}
	if a == b {
		t.Fatalf("CreateTab() returned the same id %d for different urls", a)
	}

	got, err := h.orch.SwitchTab(ctx, "https://a")
	if err != nil || got != a {
		t.Fatalf("SwitchTab(a) = %d, %v; want %d, nil", got, err, a)
	}

	attached := h.attachedIDs()
	if len(attached) != 1 || attached[0] != a {
		t.Fatalf("attached = %v; want [%d]", attached, a)
	}
	if cur, ok := h.orch.CurrentTab(); !ok || cur != a {
		t.Fatalf("CurrentTab() = %d, %v; want %d, true", cur, ok, a)
	}
	switches := h.events.named(bus.EventSwitchTab)
	if len(switches) != 1 || switches[0].Data["id"] != a {
		t.Fatalf("onSwitchTab events = %v; want one with id %d", switches, a)
	}
}

func TestSwitchTabWithID_ReattachesAndSkipsNotify(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	a, _ := h.orch.SwitchTab(ctx, "https://a")
	b, _ := h.orch.SwitchTab(ctx, "https://b")

	if err := h.orch.SwitchTabWithID(ctx, a, false); err != nil {
		t.Fatalf("SwitchTabWithID() = %v; want nil", err)
	}

	attached := h.attachedIDs()
	if len(attached) != 1 || attached[0] != a {
		t.Fatalf("attached = %v; want [%d]", attached, a)
	}
	if got := len(h.events.named(bus.EventSwitchTab)); got != 2 {
		t.Fatalf("onSwitchTab events = %d; want 2", got)
	}
	if h.window.Contains(b) {
		t.Fatalf("tab %d still attached", b)
	}
}

func TestSwitchTabWithID_UnknownIsNoop(t *testing.T) {
	h := newHarness(t, true)
	if err := h.orch.SwitchTabWithID(context.Background(), 999, true); err != nil {
		t.Fatalf("SwitchTabWithID() = %v; want nil", err)
	}
	if got := len(h.events.named(bus.EventSwitchTab)); got != 0 {
		t.Fatalf("onSwitchTab events = %d; want 0", got)
	}
}

func TestCreateTab_AppliesBoundsBelowHeader(t *testing.T) {
	h := newHarness(t, true)
	id, err := h.orch.CreateTab(context.Background(), "https://a")
	if err != nil {
		t.Fatalf("CreateTab() = %v; want nil", err)
	}

	bounds := h.factory.Get(id).Bounds()
	want := types.Bounds{X: 0, Y: tabs.DefaultHeaderHeight, Width: 800, Height: 600 - tabs.DefaultHeaderHeight}
	if len(bounds) != 1 || bounds[0] != want {
		t.Fatalf("bounds = %v; want [%v]", bounds, want)
	}
}

func TestCreateTab_LoadsURLAsynchronously(t *testing.T) {
	h := newHarness(t, true)
	id, err := h.orch.CreateTab(context.Background(), "https://a")
	if err != nil {
		t.Fatalf("CreateTab() = %v; want nil", err)
	}
	surface := h.factory.Get(id)
	waitFor(t, "url load", func() bool { return len(surface.Loaded()) == 1 })
	if got := surface.Loaded()[0]; got != "https://a" {
		t.Fatalf("loaded = %q; want %q", got, "https://a")
	}
}

func TestCreateTab_RejectsEmptyURL(t *testing.T) {
	h := newHarness(t, true)
	_, err := h.orch.CreateTab(context.Background(), "")
	if !types.HasCode(err, types.CodeValidation) {
		t.Fatalf("CreateTab(\"\") = %v; want %s", err, types.CodeValidation)
	}
}

func TestCreateTab_ConcurrentSameURLSharesContainer(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	const callers = 8
	ids := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := h.orch.CreateTab(ctx, "https://same")
			if err != nil {
				t.Errorf("CreateTab() = %v; want nil", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("ids = %v; want all equal", ids)
		}
	}
	if h.registry.Len() != 1 {
		t.Fatalf("registry.Len() = %d; want 1", h.registry.Len())
	}
}

func TestCloseTab_Idempotent(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id, _ := h.orch.SwitchTab(ctx, "https://a")

	h.orch.CloseTab(ctx, id, tabs.CloseOptions{NotifyView: true})
	h.orch.CloseTab(ctx, id, tabs.CloseOptions{NotifyView: true})

	if got := h.factory.Get(id).Closed(); got != 1 {
		t.Fatalf("surface closed %d times; want 1", got)
	}
	if got := len(h.events.named(bus.EventCloseTab)); got != 1 {
		t.Fatalf("onCloseTab events = %d; want 1", got)
	}
	if _, ok := h.orch.TabID("https://a"); ok {
		t.Fatal("TabID(a) still resolves after close")
	}
	if h.window.Contains(id) {
		t.Fatal("closed tab still attached")
	}
}

func TestCloseTab_SilentWithoutNotify(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id, _ := h.orch.CreateTab(ctx, "https://a")

	h.orch.CloseTab(ctx, id, tabs.CloseOptions{})

	if got := len(h.events.named(bus.EventCloseTab)); got != 0 {
		t.Fatalf("onCloseTab events = %d; want 0", got)
	}
}

func TestCloseTabByURL_Notifies(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id, _ := h.orch.CreateTab(ctx, "https://a")

	h.orch.CloseTabByURL(ctx, "https://a")
	h.orch.CloseTabByURL(ctx, "https://missing")

	closes := h.events.named(bus.EventCloseTab)
	if len(closes) != 1 || closes[0].Data["id"] != id {
		t.Fatalf("onCloseTab events = %v; want one with id %d", closes, id)
	}
}

func TestCloseCurrentTab_ClosesForeground(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	a, _ := h.orch.SwitchTab(ctx, "https://a")
	b, _ := h.orch.SwitchTab(ctx, "https://b")

	h.orch.CloseCurrentTab(ctx)

	if _, ok := h.registry.Get(b); ok {
		t.Fatalf("tab %d still registered", b)
	}
	if _, ok := h.registry.Get(a); !ok {
		t.Fatalf("tab %d was closed", a)
	}
}

func TestReloadCurrentTab_UsesStoredURL(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id, _ := h.orch.SwitchTab(ctx, "https://a")
	surface := h.factory.Get(id)
	waitFor(t, "url load", func() bool { return len(surface.Loaded()) == 1 })

	if err := h.orch.ReloadCurrentTab(ctx); err != nil {
		t.Fatalf("ReloadCurrentTab() = %v; want nil", err)
	}
	if got := surface.Loaded(); len(got) != 2 || got[1] != "https://a" {
		t.Fatalf("loaded = %v; want reload of https://a", got)
	}
}

func TestCloseAllTabs_EmptiesTableAndRegistry(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	for _, url := range []string{"https://a", "https://b", "https://c"} {
		if _, err := h.orch.SwitchTab(ctx, url); err != nil {
			t.Fatalf("SwitchTab(%s) = %v; want nil", url, err)
		}
	}
	stray := containertest.NewSurface(500)
	h.window.AddView(stray)

	h.orch.CloseAllTabs(ctx)

	if h.orch.Len() != 0 {
		t.Fatalf("Len() = %d; want 0", h.orch.Len())
	}
	if h.registry.Len() != 0 {
		t.Fatalf("registry.Len() = %d; want 0", h.registry.Len())
	}
	if len(h.window.Views()) != 0 {
		t.Fatalf("attached = %v; want none", h.attachedIDs())
	}
	if stray.Closed() != 1 {
		t.Fatalf("stray surface closed %d times; want 1", stray.Closed())
	}
}

func TestFrameReadyBarrier_GatesCreation(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	urls := []string{"https://a", "https://b", "https://c"}
	done := make(chan error, len(urls))
	for i, url := range urls {
		go func(i int, url string) {
			var err error
			if i%2 == 0 {
				_, err = h.orch.SwitchTab(ctx, url)
			} else {
				_, err = h.orch.CreateTab(ctx, url)
			}
			done <- err
		}(i, url)
	}

	select {
	case err := <-done:
		t.Fatalf("tab call returned before frame ready: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if h.registry.Len() != 0 {
		t.Fatalf("registry.Len() = %d before ready; want 0", h.registry.Len())
	}

	if !h.orch.SetFrameReady() {
		t.Fatal("SetFrameReady() = false; want true")
	}
	if h.orch.SetFrameReady() {
		t.Fatal("second SetFrameReady() = true; want false")
	}
	for range urls {
		if err := <-done; err != nil {
			t.Fatalf("tab call = %v; want nil", err)
		}
	}
	if h.orch.Len() != len(urls) {
		t.Fatalf("Len() = %d; want %d", h.orch.Len(), len(urls))
	}
}

func TestCreateTab_CompletesAfterCallerGivesUp(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	time.AfterFunc(40*time.Millisecond, func() { h.orch.SetFrameReady() })
	_, err := h.orch.CreateTab(ctx, "https://a")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CreateTab() = %v; want context.DeadlineExceeded", err)
	}

	waitFor(t, "tab created after ready", func() bool { return h.orch.Len() == 1 })
	if _, ok := h.orch.TabID("https://a"); !ok {
		t.Fatal("TabID(https://a) missing; want the creation to complete")
	}
	if got := len(h.events.named(bus.EventCreateTab)); got != 1 {
		t.Fatalf("onCreateTab events = %d; want 1", got)
	}
}

func TestSwitchTab_CancelledCallerStillOpensTab(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.SwitchTab(ctx, "https://a")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SwitchTab() = %v; want context.Canceled", err)
	}
	h.orch.SetFrameReady()
	waitFor(t, "tab switched after ready", func() bool {
		id, ok := h.orch.CurrentTab()
		want, found := h.orch.TabID("https://a")
		return ok && found && id == want
	})
}

func TestCreateTab_ExistingURLSwitchesToIt(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	a, err := h.orch.CreateTab(ctx, "https://a")
	if err != nil {
		t.Fatalf("CreateTab(a) = %v; want nil", err)
	}
	if _, err := h.orch.SwitchTab(ctx, "https://b"); err != nil {
		t.Fatalf("SwitchTab(b) = %v; want nil", err)
	}
	again, err := h.orch.CreateTab(ctx, "https://a")
	if err != nil {
		t.Fatalf("CreateTab(a) again = %v; want nil", err)
	}

	if again != a {
		t.Fatalf("CreateTab(a) again = %d; want %d", again, a)
	}
	if top, _ := h.orch.CurrentTab(); top != a {
		t.Fatalf("CurrentTab() = %d; want %d", top, a)
	}
	switches := h.events.named(bus.EventSwitchTab)
	if len(switches) == 0 || switches[len(switches)-1].Data["id"] != a {
		t.Fatalf("last onSwitchTab = %v; want id %d", switches, a)
	}
	if got := len(h.events.named(bus.EventCreateTab)); got != 2 {
		t.Fatalf("onCreateTab events = %d; want 2", got)
	}
}

func TestWindowOpen_RoutesToSwitchTab(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	id, _ := h.orch.SwitchTab(ctx, "https://a")
	surface := h.factory.Get(id)
	waitFor(t, "url load", func() bool { return len(surface.Loaded()) == 1 })

	surface.FireWindowOpen("https://popup")

	waitFor(t, "popup tab", func() bool {
		_, ok := h.orch.TabID("https://popup")
		return ok
	})
	popup, _ := h.orch.TabID("https://popup")
	waitFor(t, "popup foreground", func() bool {
		cur, ok := h.orch.CurrentTab()
		return ok && cur == popup
	})
}

func TestTabs_ReportsActiveTab(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	a, _ := h.orch.SwitchTab(ctx, "https://a")
	b, _ := h.orch.SwitchTab(ctx, "https://b")

	list := h.orch.Tabs()
	if len(list) != 2 || list[0].ID != a || list[1].ID != b {
		t.Fatalf("Tabs() = %+v; want a then b", list)
	}
	if list[1].State != types.TabActive || !list[1].Attached {
		t.Fatalf("Tabs()[1] = %+v; want active and attached", list[1])
	}
	if list[0].State == types.TabActive || list[0].Attached {
		t.Fatalf("Tabs()[0] = %+v; want detached", list[0])
	}
}

func TestWithContentGone_ReportsTabContainer(t *testing.T) {
	b := bus.New()
	factory := &containertest.Factory{}
	pool := container.NewPool(factory, b, 1)
	registry := container.NewRegistry()
	gone := make(chan int, 1)
	orch := tabs.New(pool, registry, window.New(&fakeBackend{}), b,
		tabs.WithContentGone(func(id int, reason string) { gone <- id }))
	orch.SetFrameReady()

	id, err := orch.SwitchTab(context.Background(), "https://a")
	if err != nil {
		t.Fatalf("SwitchTab() = %v; want nil", err)
	}
	waitFor(t, "initial load", func() bool { return len(factory.Get(id).Loaded()) == 1 })
	factory.Get(id).FireGone("crashed")

	select {
	case got := <-gone:
		if got != id {
			t.Fatalf("OnGone id = %d; want %d", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("OnGone not called")
	}
}

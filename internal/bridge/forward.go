package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/container"
)

// DefaultEventKey is the DOM custom event name events are dispatched under.
const DefaultEventKey = "GAODING_NATIVE_BRIDGE_EVENT_KEY"

const forwardTimeout = 5 * time.Second

// ScriptRunner evaluates JavaScript in a page.
type ScriptRunner interface {
	ExecuteJavaScript(ctx context.Context, script string) error
}

// SendEventJS returns the script that dispatches evt as a CustomEvent named
// eventKey on window.
func SendEventJS(eventKey string, evt bus.Event) (string, error) {
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode event %s: %w", evt.EventName, err)
	}
	key, err := json.Marshal(eventKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("window.dispatchEvent(new CustomEvent(%s, { detail: %s }))", key, payload), nil
}

// Forwarder pushes bus events into the frame and every registered container.
type Forwarder struct {
	eventKey string
	registry *container.Registry
	frame    ScriptRunner
}

// NewForwarder builds a forwarder. frame may be nil when there is no UI
// frame to notify.
func NewForwarder(eventKey string, registry *container.Registry, frame ScriptRunner) *Forwarder {
	if eventKey == "" {
		eventKey = DefaultEventKey
	}
	return &Forwarder{eventKey: eventKey, registry: registry, frame: frame}
}

// Handle is a bus.Handler. The frame always receives the event; containers
// receive it unless it is scoped to other container ids.
func (f *Forwarder) Handle(evt bus.Event) {
	script, err := SendEventJS(f.eventKey, evt)
	if err != nil {
		slog.Error("event forward failed", "event", evt.EventName, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	if f.frame != nil {
		if err := f.frame.ExecuteJavaScript(ctx, script); err != nil {
			slog.Warn("frame event delivery failed", "event", evt.EventName, "error", err)
		}
	}

	ids, scoped := evt.TargetIDs()
	for _, c := range f.registry.List() {
		if scoped && !slices.Contains(ids, c.ID()) {
			continue
		}
		_ = c.ExecuteJavaScript(ctx, script)
	}
}

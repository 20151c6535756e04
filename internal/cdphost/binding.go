package cdphost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// DefaultBindingName is the page global CDP installs the bridge binding as.
const DefaultBindingName = "__desktopService"

// preloadScript exposes window.$gnb.$desktop({type, data}) as a Promise on
// top of the raw binding. The host settles calls through <binding>Resolve.
func preloadScript(binding string) string {
	name, _ := json.Marshal(binding)
	resolve, _ := json.Marshal(binding + "Resolve")
	return fmt.Sprintf(`(() => {
  const bindingName = %[1]s;
  const resolveName = %[2]s;
  if (window[resolveName]) return;
  const pending = new Map();
  let seq = 0;
  window[resolveName] = (id, ok, payload) => {
    const call = pending.get(id);
    if (!call) return;
    pending.delete(id);
    if (ok) {
      call.resolve(payload);
    } else {
      const err = new Error((payload && payload.message) || 'bridge call failed');
      err.code = payload && payload.code;
      call.reject(err);
    }
  };
  const gnb = window.$gnb || {};
  gnb.$desktop = ({ type, data } = {}) => new Promise((resolve, reject) => {
    const binding = window[bindingName];
    if (typeof binding !== 'function') {
      reject(new Error('desktop bridge unavailable'));
      return;
    }
    const id = ++seq;
    pending.set(id, { resolve, reject });
    binding(JSON.stringify({ seq: id, type, data }));
  });
  window.$gnb = gnb;
})();`, name, resolve)
}

type bindingCall struct {
	Seq  int64           `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type bindingError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// serveBinding runs one bridge call and settles the page promise.
func (h *Host) serveBinding(s *Surface, payload string) {
	var call bindingCall
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		slog.Warn("bridge payload rejected", "container_id", s.id, "error", err)
		return
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.bindingTimeout)
	defer cancel()

	var result any
	err := types.NewError(types.CodeHostUnavailable, "no bridge handler installed", nil)
	if handler != nil {
		result, err = handler(ctx, bridge.Message{Type: call.Type, Data: call.Data})
	}

	script, buildErr := resolveScript(h.bindingName, call.Seq, result, err)
	if buildErr != nil {
		slog.Error("bridge response encode failed", "type", call.Type, "error", buildErr)
		return
	}
	if err := s.ExecuteJavaScript(ctx, script); err != nil {
		slog.Warn("bridge response delivery failed", "container_id", s.id, "type", call.Type, "error", err)
	}
}

func resolveScript(binding string, seq int64, result any, callErr error) (string, error) {
	ok := callErr == nil
	var body any = result
	if !ok {
		be := bindingError{Message: callErr.Error()}
		var coded *types.CodedError
		if errors.As(callErr, &coded) {
			be.Code = coded.Code
		}
		body = be
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	fn, _ := json.Marshal(binding + "Resolve")
	return fmt.Sprintf("window[%s](%d, %t, %s)", fn, seq, ok, payload), nil
}

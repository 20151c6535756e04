package cdphost

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakeCall struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId"`
	Params    json.RawMessage `json:"params"`
}

type fakeReply struct {
	result any
	err    string
}

// fakeBrowser speaks just enough CDP over a real websocket for host tests.
type fakeBrowser struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	calls    []fakeCall
	handlers map[string]func(fakeCall) fakeReply
	targets  int
	list     string
	conn     net.Conn

	writeMu sync.Mutex
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()
	f := &fakeBrowser{t: t, handlers: make(map[string]func(fakeCall) fakeReply)}
	f.handle("Target.createTarget", func(fakeCall) fakeReply {
		f.mu.Lock()
		f.targets++
		id := fmt.Sprintf("T%d", f.targets)
		f.mu.Unlock()
		return fakeReply{result: map[string]any{"targetId": id}}
	})
	f.handle("Target.attachToTarget", func(c fakeCall) fakeReply {
		var p struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(c.Params, &p)
		return fakeReply{result: map[string]any{"sessionId": "S-" + p.TargetID}}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws://" + r.Host + "/devtools/browser/fake"
		_ = json.NewEncoder(w).Encode(map[string]string{"webSocketDebuggerUrl": wsURL})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body := f.list
		f.mu.Unlock()
		if body == "" {
			body = `[]`
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/devtools/browser/fake", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("UpgradeHTTP() = %v", err)
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.serve(conn)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		if f.conn != nil {
			f.conn.Close()
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeBrowser) handle(method string, fn func(fakeCall) fakeReply) {
	f.mu.Lock()
	f.handlers[method] = fn
	f.mu.Unlock()
}

func (f *fakeBrowser) setList(body string) {
	f.mu.Lock()
	f.list = body
	f.mu.Unlock()
}

func (f *fakeBrowser) serve(conn net.Conn) {
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var call fakeCall
		if json.Unmarshal(data, &call) != nil {
			continue
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		fn := f.handlers[call.Method]
		f.mu.Unlock()

		reply := fakeReply{result: map[string]any{}}
		if fn != nil {
			reply = fn(call)
		}
		msg := map[string]any{"id": call.ID}
		if reply.err != "" {
			msg["error"] = map[string]any{"code": -32000, "message": reply.err}
		} else {
			msg["result"] = reply.result
		}
		f.write(conn, msg)
	}
}

func (f *fakeBrowser) write(conn net.Conn, msg any) {
	data, _ := json.Marshal(msg)
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = wsutil.WriteServerText(conn, data)
}

// emit pushes a CDP event to the connected client.
func (f *fakeBrowser) emit(method, sessionID string, params any) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Fatal("emit before client connected")
	}
	msg := map[string]any{"method": method, "params": params}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}
	f.write(conn, msg)
}

func (f *fakeBrowser) callsTo(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBrowser) waitForCall(method string, match func(fakeCall) bool) fakeCall {
	f.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range f.callsTo(method) {
			if match == nil || match(c) {
				return c
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.t.Fatalf("timed out waiting for %s", method)
	return fakeCall{}
}

func paramsContain(c fakeCall, s string) bool {
	return strings.Contains(string(c.Params), s)
}

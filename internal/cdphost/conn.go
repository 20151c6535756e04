package cdphost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is a browser-level CDP websocket with flat target sessions.
type Conn struct {
	httpBase string // e.g. "http://127.0.0.1:9220"

	mu   sync.Mutex
	conn net.Conn
	seq  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan json.RawMessage

	eventMu       sync.RWMutex
	eventHandlers map[string][]eventHandler
}

type eventHandler struct {
	id int64
	fn func(sessionID string, params json.RawMessage)
}

func NewConn(httpBase string) *Conn {
	return &Conn{
		httpBase:      strings.TrimRight(httpBase, "/"),
		pending:       make(map[int64]chan json.RawMessage),
		eventHandlers: make(map[string][]eventHandler),
	}
}

// HTTPBase returns the DevTools HTTP endpoint the connection was built for.
func (c *Conn) HTTPBase() string { return c.httpBase }

// Connect dials the browser websocket endpoint advertised by /json/version.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	wsURL, err := c.browserWSURL(ctx)
	if err != nil {
		return fmt.Errorf("cdphost: browser ws url: %w", err)
	}

	slog.Debug("cdp connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("cdphost: dial: %w", err)
	}

	c.conn = conn
	c.pending = make(map[int64]chan json.RawMessage)
	go c.readLoop(conn)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// readLoop routes responses to waiters and events to handlers. Handlers run
// on this goroutine and must not issue commands synchronously.
func (c *Conn) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("cdp read loop exit", "error", err)
			c.closeAllPending()
			return
		}

		var msg struct {
			ID        int64           `json:"id"`
			Method    string          `json:"method"`
			SessionID string          `json:"sessionId"`
			Params    json.RawMessage `json:"params"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.ID > 0 {
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- json.RawMessage(data)
			}
		} else if msg.Method != "" {
			c.dispatchEvent(msg.Method, msg.SessionID, msg.Params)
		}
	}
}

func (c *Conn) closeAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Conn) deletePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Call sends method on sessionID (empty for the browser session) and decodes
// the command result into out when out is non-nil.
func (c *Conn) Call(ctx context.Context, sessionID, method string, params, out any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("cdphost: not connected")
	}

	id := c.seq.Add(1)
	envelope := struct {
		ID        int64  `json:"id"`
		Method    string `json:"method"`
		SessionID string `json:"sessionId,omitempty"`
		Params    any    `json:"params,omitempty"`
	}{ID: id, Method: method, SessionID: sessionID, Params: params}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("cdphost: marshal %s: %w", method, err)
	}

	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.mu.Lock()
	err = wsutil.WriteClientText(conn, data)
	c.mu.Unlock()
	if err != nil {
		c.deletePending(id)
		return fmt.Errorf("cdphost: send %s: %w", method, err)
	}

	var raw json.RawMessage
	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("cdphost: connection closed")
		}
		raw = resp
	case <-ctx.Done():
		c.deletePending(id)
		return ctx.Err()
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("cdphost: unmarshal %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("cdphost: %s: %s", method, resp.Error.Message)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("cdphost: decode %s result: %w", method, err)
	}
	return nil
}

// AttachToTarget attaches a flat session to targetID.
func (c *Conn) AttachToTarget(ctx context.Context, targetID target.ID) (string, error) {
	params := struct {
		TargetID target.ID `json:"targetId"`
		Flatten  bool      `json:"flatten"`
	}{TargetID: targetID, Flatten: true}

	var result struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.Call(ctx, "", "Target.attachToTarget", params, &result); err != nil {
		return "", err
	}
	return result.SessionID, nil
}

// Evaluate runs js in the session's page and returns the result as a string.
func (c *Conn) Evaluate(ctx context.Context, sessionID, js string) (string, error) {
	params := struct {
		Expression    string `json:"expression"`
		ReturnByValue bool   `json:"returnByValue"`
		AwaitPromise  bool   `json:"awaitPromise"`
	}{Expression: js, ReturnByValue: true, AwaitPromise: true}

	var result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := c.Call(ctx, sessionID, "Runtime.evaluate", params, &result); err != nil {
		return "", err
	}
	if result.ExceptionDetails != nil {
		return "", fmt.Errorf("cdphost: eval exception: %s", result.ExceptionDetails.Text)
	}

	var s string
	if err := json.Unmarshal(result.Result.Value, &s); err != nil {
		return string(result.Result.Value), nil
	}
	return s, nil
}

// On registers fn for a CDP event method and returns its unregister func.
func (c *Conn) On(method string, fn func(sessionID string, params json.RawMessage)) func() {
	id := c.seq.Add(1)
	c.eventMu.Lock()
	c.eventHandlers[method] = append(c.eventHandlers[method], eventHandler{id: id, fn: fn})
	c.eventMu.Unlock()
	return func() {
		c.eventMu.Lock()
		defer c.eventMu.Unlock()
		handlers := c.eventHandlers[method]
		for i, h := range handlers {
			if h.id == id {
				c.eventHandlers[method] = append(handlers[:i], handlers[i+1:]...)
				break
			}
		}
	}
}

func (c *Conn) dispatchEvent(method, sessionID string, params json.RawMessage) {
	c.eventMu.RLock()
	handlers := make([]eventHandler, len(c.eventHandlers[method]))
	copy(handlers, c.eventHandlers[method])
	c.eventMu.RUnlock()
	for _, h := range handlers {
		h.fn(sessionID, params)
	}
}

// ListTargets fetches open targets via the HTTP /json/list endpoint.
func (c *Conn) ListTargets(ctx context.Context) ([]*target.Info, error) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(listCtx, http.MethodGet, c.httpBase+"/json/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdphost: /json/list: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(e.ID),
			Type:     e.Type,
			Title:    e.Title,
			URL:      e.URL,
		})
	}
	return out, nil
}

// BrowserWSURL fetches the websocket debugger URL from /json/version.
func (c *Conn) BrowserWSURL(ctx context.Context) (string, error) {
	return c.browserWSURL(ctx)
}

func (c *Conn) browserWSURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpBase+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cdphost: /json/version: HTTP %d", resp.StatusCode)
	}

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

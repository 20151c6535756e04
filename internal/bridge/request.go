// Package bridge implements both directions of the UI process protocol:
// typed requests from the frame into the host, and bus events pushed back
// into page content.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/tabshell/internal/types"
)

// Request type names accepted on the bridge channel.
const (
	TypeCloseTabOnTabPage      = "closeTabOnTabPage"
	TypeFrameDidReadyOnTabPage = "frameDidReadyOnTabPage"
	TypeSwitchTabOnWindow      = "switchTabOnWindow"
	TypeCreateTabOnWindow      = "createTabOnWindow"
)

// Message is the wire shape of a bridge call.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request is one decoded bridge call. The set of implementations is closed.
type Request interface {
	Type() string
	isRequest()
}

// CloseTabOnTabPage is sent when the user closes a tab in the tab strip.
type CloseTabOnTabPage struct {
	ID int `json:"id"`
}

// FrameDidReadyOnTabPage is sent once the tab strip finished its setup.
type FrameDidReadyOnTabPage struct{}

// SwitchTabOnWindow is sent when the user activates a tab in the tab strip.
type SwitchTabOnWindow struct {
	ID int `json:"id"`
}

// CreateTabOnWindow asks the host to open a tab for URL.
type CreateTabOnWindow struct {
	URL string `json:"url"`
}

func (CloseTabOnTabPage) Type() string      { return TypeCloseTabOnTabPage }
func (FrameDidReadyOnTabPage) Type() string { return TypeFrameDidReadyOnTabPage }
func (SwitchTabOnWindow) Type() string      { return TypeSwitchTabOnWindow }
func (CreateTabOnWindow) Type() string      { return TypeCreateTabOnWindow }

func (CloseTabOnTabPage) isRequest()      {}
func (FrameDidReadyOnTabPage) isRequest() {}
func (SwitchTabOnWindow) isRequest()      {}
func (CreateTabOnWindow) isRequest()      {}

// Decode turns a wire message into its request variant. Unknown types fail
// with UNIMPLEMENTED_METHOD.
func Decode(msg Message) (Request, error) {
	var req Request
	var err error
	switch msg.Type {
	case TypeCloseTabOnTabPage:
		r := CloseTabOnTabPage{ID: -1}
		err = decodeData(msg, &r)
		req = r
	case TypeFrameDidReadyOnTabPage:
		req = FrameDidReadyOnTabPage{}
	case TypeSwitchTabOnWindow:
		r := SwitchTabOnWindow{ID: -1}
		err = decodeData(msg, &r)
		req = r
	case TypeCreateTabOnWindow:
		var r CreateTabOnWindow
		err = decodeData(msg, &r)
		req = r
	default:
		return nil, types.NewError(types.CodeUnimplementedMethod, fmt.Sprintf("%s is not implemented", msg.Type), nil)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func decodeData(msg Message, dst any) error {
	data := bytes.TrimSpace(msg.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return types.NewError(types.CodeValidation, fmt.Sprintf("invalid %s data", msg.Type), err)
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabshell/internal/bridge"
)

func registerBridgeHandlers(api huma.API, svc Service) {
	type bridgeOutput struct {
		Body struct {
			Type   string `json:"type"`
			Result any    `json:"result"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "bridge-call", Method: http.MethodPost, Path: "/api/v1/bridge", Summary: "Dispatch a bridge request as the UI frame would", Tags: []string{"Bridge"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Type string         `json:"type" required:"true" doc:"Request type (closeTabOnTabPage, frameDidReadyOnTabPage, switchTabOnWindow, createTabOnWindow)"`
				Data map[string]any `json:"data,omitempty" doc:"Request payload"`
			}
		}) (*bridgeOutput, error) {
			msg := bridge.Message{Type: input.Body.Type}
			if input.Body.Data != nil {
				raw, err := json.Marshal(input.Body.Data)
				if err != nil {
					return nil, huma.Error400BadRequest("invalid data", err)
				}
				msg.Data = raw
			}
			result, err := svc.Bridge(ctx, msg)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &bridgeOutput{}
			out.Body.Type = msg.Type
			out.Body.Result = result
			return out, nil
		})
}

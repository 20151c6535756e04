package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabshell/internal/types"
)

func registerTabHandlers(api huma.API, svc Service) {
	type tabOutput struct {
		Body types.TabInfo
	}

	type listTabsOutput struct {
		Body struct {
			Tabs []types.TabInfo `json:"tabs"`
		}
	}

	type closedOutput struct {
		Body struct {
			Status   string `json:"status"`
			ClosedID int    `json:"closed_id,omitempty"`
			Count    int    `json:"count,omitempty"`
		}
	}

	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}

	type urlBody struct {
		Body struct {
			URL string `json:"url" required:"true" doc:"Tab URL"`
		}
	}

	type tabIDInput struct {
		TabID int `path:"tab_id" doc:"Container id"`
	}

	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List open tabs in opening order", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			list, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = list
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "switch-tab", Method: http.MethodPost, Path: "/api/v1/tabs/switch", Summary: "Bring the tab for a URL to the foreground, opening it if needed", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *urlBody) (*tabOutput, error) {
			info, err := svc.SwitchTab(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tabOutput{Body: info}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "activate-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/activate", Summary: "Bring a tab to the foreground by id", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*tabOutput, error) {
			info, err := svc.ActivateTab(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tabOutput{Body: info}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-tab", Method: http.MethodDelete, Path: "/api/v1/tabs/{tab_id}", Summary: "Close a tab by id", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*closedOutput, error) {
			if err := svc.CloseTab(ctx, input.TabID); err != nil {
				return nil, mapErr(err)
			}
			out := &closedOutput{}
			out.Body.Status = "closed"
			out.Body.ClosedID = input.TabID
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-tab-by-url", Method: http.MethodPost, Path: "/api/v1/tabs/close", Summary: "Close the tab for a URL", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *urlBody) (*closedOutput, error) {
			id, err := svc.CloseTabByURL(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &closedOutput{}
			out.Body.Status = "closed"
			out.Body.ClosedID = id
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-current-tab", Method: http.MethodPost, Path: "/api/v1/tabs/close-current", Summary: "Close the foreground tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*closedOutput, error) {
			id, err := svc.CloseCurrentTab(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &closedOutput{}
			out.Body.Status = "closed"
			out.Body.ClosedID = id
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-all-tabs", Method: http.MethodPost, Path: "/api/v1/tabs/close-all", Summary: "Close every tab without notifying the tab strip", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*closedOutput, error) {
			n, err := svc.CloseAllTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &closedOutput{}
			out.Body.Status = "closed"
			out.Body.Count = n
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reload-current-tab", Method: http.MethodPost, Path: "/api/v1/tabs/reload-current", Summary: "Reload the foreground tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ReloadCurrentTab(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "reloaded"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "sweep-orphans", Method: http.MethodPost, Path: "/api/v1/tabs/sweep", Summary: "Close page targets no tab, pool entry or frame owns", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*closedOutput, error) {
			n, err := svc.SweepOrphans(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &closedOutput{}
			out.Body.Status = "swept"
			out.Body.Count = n
			return out, nil
		})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabshell/internal/controller"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body controller.Health
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			h, err := svc.Health(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &healthOutput{Body: h}, nil
		})
}

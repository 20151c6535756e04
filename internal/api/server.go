package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/controller"
	"github.com/dgnsrekt/tabshell/internal/relay"
	"github.com/dgnsrekt/tabshell/internal/types"
)

type Service interface {
	Bridge(ctx context.Context, msg bridge.Message) (any, error)
	ListTabs(ctx context.Context) ([]types.TabInfo, error)
	SwitchTab(ctx context.Context, url string) (types.TabInfo, error)
	ActivateTab(ctx context.Context, id int) (types.TabInfo, error)
	CloseTab(ctx context.Context, id int) error
	CloseTabByURL(ctx context.Context, url string) (int, error)
	CloseCurrentTab(ctx context.Context) (int, error)
	CloseAllTabs(ctx context.Context) (int, error)
	ReloadCurrentTab(ctx context.Context) error
	SweepOrphans(ctx context.Context) (int, error)
	Health(ctx context.Context) (controller.Health, error)
}

// Options mounts the non-huma handlers next to the API.
type Options struct {
	// Events backs the SSE and WebSocket event streams when set.
	Events *relay.Broker
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// ObserveHTTP is told about every served request.
	ObserveHTTP func(method string, status int, elapsed time.Duration)
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(opts.ObserveHTTP))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Shell Control API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if opts.Events != nil {
		router.Get("/api/v1/events", relay.SSEHandler(opts.Events))
		router.Get("/api/v1/events/ws", relay.WSHandler(opts.Events))
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	registerMiscHandlers(api, svc)
	registerBridgeHandlers(api, svc)
	registerTabHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeUnknownContainer:
			return huma.Error404NotFound(coded.Message)
		case types.CodeUnimplementedMethod:
			return huma.Error501NotImplemented(coded.Message)
		case types.CodePoolExhausted:
			return huma.Error503ServiceUnavailable(coded.Message)
		case types.CodeHostUnavailable, types.CodeSurfaceFailure:
			return huma.Error502BadGateway(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

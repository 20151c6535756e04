package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tabshell/internal/api"
	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/browser"
	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/cdphost"
	"github.com/dgnsrekt/tabshell/internal/config"
	"github.com/dgnsrekt/tabshell/internal/container"
	"github.com/dgnsrekt/tabshell/internal/controller"
	"github.com/dgnsrekt/tabshell/internal/metrics"
	"github.com/dgnsrekt/tabshell/internal/netutil"
	"github.com/dgnsrekt/tabshell/internal/notify"
	"github.com/dgnsrekt/tabshell/internal/relay"
	"github.com/dgnsrekt/tabshell/internal/storage"
	"github.com/dgnsrekt/tabshell/internal/tabs"
	"github.com/dgnsrekt/tabshell/internal/window"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pflag.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "control API bind address")
	pflag.StringVar(&cfg.FrameURL, "frame-url", cfg.FrameURL, "UI frame (tab strip) page URL")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pflag.BoolVar(&cfg.LaunchBrowser, "launch-browser", cfg.LaunchBrowser, "spawn Chromium when the CDP port is free")
	pflag.Parse()

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tabshell config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"frame_url", cfg.FrameURL,
		"header_height", cfg.HeaderHeight,
		"preload_count", cfg.PreloadCount,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"event_key", cfg.EventKey,
		"launch_browser", cfg.LaunchBrowser,
		"journal_dir", cfg.JournalDir,
		"notify_url", cfg.NotifyURL,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			FrameURL:   cfg.FrameURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
	}

	conn := cdphost.NewConn(cfg.CDPURL())
	if err := conn.Connect(ctx); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		slog.Info("make sure Chromium is running with remote debugging enabled, or pass --launch-browser")
		os.Exit(1)
	}

	host := cdphost.NewHost(conn, cdphost.Options{EvalTimeout: cfg.EvalTimeout()})
	if err := host.Start(ctx); err != nil {
		slog.Error("failed to start content host", "error", err)
		os.Exit(1)
	}

	eventBus := bus.New()
	pool := container.NewPool(host, eventBus, cfg.PreloadCount)
	registry := container.NewRegistry()
	win := window.New(cdphost.NewWindowBackend(host))
	orchOpts := []tabs.Option{tabs.WithHeaderHeight(cfg.HeaderHeight)}
	frameGone := func(reason string) {
		slog.Error("UI frame gone", "reason", reason)
	}
	if cfg.NotifyURL != "" {
		notifier := notify.New(cfg.NotifyURL, nil)
		orchOpts = append(orchOpts, tabs.WithContentGone(notifier.ContentGone))
		frameGone = func(reason string) {
			slog.Error("UI frame gone", "reason", reason)
			notifier.FrameGone(reason)
		}
	}
	orch := tabs.New(pool, registry, win, eventBus, orchOpts...)
	broker := relay.NewBroker()

	m := metrics.New(metrics.Sources{
		PoolIdle:     pool.Idle,
		Containers:   registry.Len,
		OpenTabs:     orch.Len,
		FrameReady:   orch.FrameReady,
		StreamClient: broker.ClientCount,
	})
	bridgeSvc := bridge.NewService(orch, m.ObserveBridge)
	host.SetBindingHandler(bridgeSvc.Call)

	host.SetFrameHooks(container.Hooks{
		WindowOpen: orch.OpenFromContent,
		Gone:       frameGone,
	})

	eventBus.Subscribe(bridge.NewForwarder(cfg.EventKey, registry, host.FrameRunner()).Handle)
	eventBus.Subscribe(broker.HandleBusEvent)
	eventBus.Subscribe(m.HandleBusEvent)

	var journal *storage.Journal
	if cfg.JournalDir != "" {
		journal = storage.NewJournal(cfg.JournalDir, 0, 0)
		eventBus.Subscribe(journal.HandleBusEvent)
	}

	if err := pool.Fill(ctx); err != nil {
		slog.Warn("pool prefill failed, tabs will be created on demand", "error", err)
	}

	if _, err := host.AttachFrame(ctx, cfg.FrameURL); err != nil {
		slog.Error("failed to attach UI frame", "frame_url", cfg.FrameURL, "error", err)
		os.Exit(1)
	}

	go openStartupTabs(ctx, orch, cfg.StartupTabsPath)

	sweeper := cdphost.NewSweeper(cfg.CDPURL(), host.OwnedTargets)
	svc := controller.NewService(orch, bridgeSvc, pool, registry, sweeper)
	h := api.NewServer(svc, api.Options{
		Events:      broker,
		Metrics:     m.Handler(),
		ObserveHTTP: m.ObserveHTTP,
	})

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind control API", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	srv := &http.Server{Handler: h}

	go func() {
		addr := ln.Addr().String()
		slog.Info("tabshell listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("tabshell server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("tabshell shutdown failed", "error", err)
	}
	cancel()
	orch.CloseAllTabs(shutdownCtx)
	pool.Close(shutdownCtx)
	if n, err := sweeper.Sweep(shutdownCtx); err != nil {
		slog.Warn("orphan sweep failed", "error", err)
	} else if n > 0 {
		slog.Info("closed orphan targets", "count", n)
	}
	host.Stop()
	conn.Close()
	if journal != nil {
		if err := journal.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}
	if launcher != nil {
		launcher.Stop()
	}
	slog.Info("tabshell stopped")
}

// openStartupTabs waits for the frame-ready barrier, then opens each
// configured URL in order.
func openStartupTabs(ctx context.Context, orch *tabs.Orchestrator, path string) {
	cfg, err := config.LoadStartupTabs(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no startup tabs file", "path", path)
		} else {
			slog.Warn("startup tabs ignored", "path", path, "error", err)
		}
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-orch.Ready():
	}
	for _, tab := range cfg.Tabs {
		if _, err := orch.SwitchTab(ctx, tab.URL); err != nil {
			slog.Warn("startup tab failed", "url", tab.URL, "error", err)
		}
	}
	slog.Info("startup tabs opened", "count", len(cfg.Tabs))
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}

// Package browser spawns the Chromium process that hosts the UI frame and
// the tab content targets.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

const cdpReadyTimeout = 15 * time.Second

// Config holds browser launch configuration.
type Config struct {
	CDPAddress string
	CDPPort    int
	// FrameURL is opened in app mode as the shell window.
	FrameURL   string
	ProfileDir string
	WindowSize string
	// Binary overrides browser detection.
	Binary string
}

// Launcher manages the lifecycle of a browser process.
type Launcher struct {
	cfg     Config
	cmd     *exec.Cmd
	running bool
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1024,768"
	}
	return &Launcher{cfg: cfg}
}

func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried chromium-browser, chromium, google-chrome)")
}

func (l *Launcher) cdpHostPort() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

func (l *Launcher) portInUse() bool {
	conn, err := net.DialTimeout("tcp", l.cdpHostPort(), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// args builds the command line. window.open must reach the host as
// Page.windowOpen, so the popup blocker is off.
func (l *Launcher) args() []string {
	return []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-popup-blocking",
		"--window-size=" + l.cfg.WindowSize,
		"--app=" + l.cfg.FrameURL,
	}
}

// Launch starts the browser process unless the CDP port is already in use.
func (l *Launcher) Launch(ctx context.Context) error {
	if l.portInUse() {
		slog.Info("browser already running, skipping launch", "cdp", l.cdpHostPort())
		return nil
	}

	browserPath := l.cfg.Binary
	if browserPath == "" {
		var err error
		if browserPath, err = detectBrowser(); err != nil {
			return err
		}
	}
	slog.Info("launching browser", "path", browserPath, "frame_url", l.cfg.FrameURL)

	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(browserPath, l.args()...)
	l.cmd.Stdout = os.Stdout
	l.cmd.Stderr = os.Stderr
	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	l.running = true
	slog.Info("browser process started", "pid", l.cmd.Process.Pid)

	if err := l.waitForCDP(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready", "cdp", l.cdpHostPort())
	return nil
}

// waitForCDP polls /json/version until it responds.
func (l *Launcher) waitForCDP(ctx context.Context) error {
	url := "http://" + l.cdpHostPort() + "/json/version"
	deadline := time.After(cdpReadyTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within %s at %s", cdpReadyTimeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop terminates the browser process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil || !l.running {
		return
	}
	slog.Info("stopping browser", "pid", l.cmd.Process.Pid)
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("browser stopped gracefully")
	case <-time.After(5 * time.Second):
		slog.Warn("browser did not exit, sending SIGKILL")
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.running = false
}

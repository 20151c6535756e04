package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tab shell.
type Config struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	EvalTimeoutMS int

	// HTTP control surface
	BindAddr         string
	PortAutoFallback bool
	PortCandidates   []string

	// UI frame and tab layout
	FrameURL     string
	HeaderHeight int
	PreloadCount int
	EventKey     string

	// Launcher
	LaunchBrowser bool
	ProfileDir    string

	StartupTabsPath string
	JournalDir      string
	// NotifyURL receives content crash alerts; empty disables them.
	NotifyURL string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		EvalTimeoutMS:    getEnvIntOrDefault("TABSHELL_EVAL_TIMEOUT_MS", 5000),
		BindAddr:         getEnvOrDefault("TABSHELL_BIND_ADDR", "127.0.0.1:8190"),
		PortAutoFallback: getEnvBoolOrDefault("TABSHELL_PORT_AUTO_FALLBACK", true),
		PortCandidates:   splitList(getEnvOrDefault("TABSHELL_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192")),
		FrameURL:         getEnvOrDefault("TABSHELL_FRAME_URL", "http://localhost:9080"),
		HeaderHeight:     getEnvIntOrDefault("TABSHELL_HEADER_HEIGHT", 40),
		PreloadCount:     getEnvIntOrDefault("TABSHELL_PRELOAD_COUNT", 1),
		EventKey:         getEnvOrDefault("TABSHELL_EVENT_KEY", "GAODING_NATIVE_BRIDGE_EVENT_KEY"),
		LaunchBrowser:    getEnvBoolOrDefault("TABSHELL_LAUNCH_BROWSER", false),
		ProfileDir:       getEnvOrDefault("TABSHELL_PROFILE_DIR", "./profile"),
		StartupTabsPath:  getEnvOrDefault("TABSHELL_STARTUP_TABS", "./config/startup_tabs.yaml"),
		JournalDir:       os.Getenv("TABSHELL_JOURNAL_DIR"),
		NotifyURL:        os.Getenv("TABSHELL_NOTIFY_URL"),
		LogLevel:         strings.ToLower(getEnvOrDefault("TABSHELL_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("TABSHELL_LOG_FILE", "logs/tabshell.log"),
	}
	if _, set := os.LookupEnv("TABSHELL_JOURNAL_DIR"); !set {
		cfg.JournalDir = "./journal"
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.PreloadCount < 1 {
		cfg.PreloadCount = 1
	}
	if cfg.HeaderHeight < 0 {
		return nil, fmt.Errorf("TABSHELL_HEADER_HEIGHT must be >= 0, got %d", cfg.HeaderHeight)
	}
	if cfg.FrameURL == "" {
		return nil, fmt.Errorf("TABSHELL_FRAME_URL must not be empty")
	}

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

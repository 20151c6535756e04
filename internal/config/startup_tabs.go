package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TabEntry describes a tab opened once the UI frame is ready.
type TabEntry struct {
	URL string `yaml:"url"`
}

// StartupTabsConfig is the top-level YAML configuration for startup tabs.
type StartupTabsConfig struct {
	Tabs []TabEntry `yaml:"tabs"`
}

// LoadStartupTabs reads and validates a startup tabs YAML file.
// Returns an os.ErrNotExist-wrapped error if the file is absent (caller
// silently skips in that case).
func LoadStartupTabs(path string) (*StartupTabsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("startup_tabs config: %w", err)
	}
	var cfg StartupTabsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("startup_tabs config: %w", err)
	}
	for i, tab := range cfg.Tabs {
		if tab.URL == "" {
			return nil, fmt.Errorf("startup_tabs config: tabs[%d] missing url", i)
		}
	}
	return &cfg, nil
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	ApiAddr        string `json:"api_addr"`
	LogLevel       string `json:"log_level"`
	Locale         string `json:"locale"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	CacheSize      int    `json:"template_cache_size"`
}

// RenderConfig holds the default rendering limits. Per-request form fields
// can tighten behavior (strict mode, format) but not raise the budgets.
type RenderConfig struct {
	MaxOutputBytes int64 `json:"max_output_bytes"`
	TimeoutSec     int   `json:"timeout_sec"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Render *RenderConfig `json:"render_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:        ":7279",
		LogLevel:       "info",
		Locale:         "en",
		MaxUploadBytes: 64 << 20,
		CacheSize:      128,
	}
}

// DefaultRenderConfig creates a render configuration with default values.
func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		MaxOutputBytes: 10 << 20,
		TimeoutSec:     5,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: DefaultServerConfig(),
		Render: DefaultRenderConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ConfigManager handles thread-safe access to the configuration.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update validates the new configuration, applies it, and saves it to disk.
func (cm *ConfigManager) Update(newConfig Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if newConfig.Server == nil || newConfig.Render == nil {
		return fmt.Errorf("configuration sections must not be null")
	}
	if newConfig.Server.ApiAddr == "" {
		return fmt.Errorf("api_addr must not be empty")
	}
	if _, ok := messages[newConfig.Server.Locale]; !ok {
		return fmt.Errorf("unsupported locale %q", newConfig.Server.Locale)
	}

	*cm.config = newConfig

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("Configuration updated and saved. Some changes may require a restart.")
	return nil
}

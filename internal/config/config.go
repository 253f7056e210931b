// Package config loads the focusflow configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// Defaults.
const (
	DefaultListenAddr = "127.0.0.1:7435"
	DefaultNamespace  = "local"
	DefaultLogLevel   = "info"
)

// Config is the resolved configuration.
type Config struct {
	DataDir     string
	ListenAddr  string
	Namespace   string
	TickPeriod  time.Duration
	LogLevel    zapcore.Level
	AudioSocket string
}

type yamlConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	Namespace   string `yaml:"namespace"`
	TickPeriod  string `yaml:"tick_period"`
	LogLevel    string `yaml:"log_level"`
	AudioSocket string `yaml:"audio_socket"`
}

// Default returns the configuration used when no file exists.
func Default(dataDir string) *Config {
	return &Config{
		DataDir:     dataDir,
		ListenAddr:  DefaultListenAddr,
		Namespace:   DefaultNamespace,
		TickPeriod:  policy.TickPeriod,
		LogLevel:    zapcore.InfoLevel,
		AudioSocket: filepath.Join(dataDir, "audio.sock"),
	}
}

// Load reads path on top of the defaults for dataDir.
// A missing file is not an error; malformed YAML or values are.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var file yamlConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := apply(cfg, file); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	file := yamlConfig{
		ListenAddr:  cfg.ListenAddr,
		Namespace:   cfg.Namespace,
		TickPeriod:  cfg.TickPeriod.String(),
		LogLevel:    cfg.LogLevel.String(),
		AudioSocket: cfg.AudioSocket,
	}

	serialized, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func apply(cfg *Config, file yamlConfig) error {
	if file.ListenAddr != "" {
		cfg.ListenAddr = file.ListenAddr
	}
	if file.Namespace != "" {
		cfg.Namespace = file.Namespace
	}
	if file.AudioSocket != "" {
		cfg.AudioSocket = file.AudioSocket
	}

	if file.TickPeriod != "" {
		period, err := time.ParseDuration(file.TickPeriod)
		if err != nil {
			return fmt.Errorf("tick_period: %w", err)
		}
		if period < policy.TickPeriod {
			period = policy.TickPeriod
		}
		cfg.TickPeriod = period
	}

	if file.LogLevel != "" {
		level, err := zapcore.ParseLevel(file.LogLevel)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	return nil
}

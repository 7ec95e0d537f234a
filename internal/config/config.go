// Package config captures the tunable settings for the webclaw host and
// worker: a YAML file overlaying defaults, with environment variables taking
// final precedence (WEBCLAW_PORT forces the bridge port).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the webclaw host.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Browser  BrowserConfig  `yaml:"browser"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// LogFile receives log output in stdio mode, where stderr noise
	// corrupts the MCP protocol stream.
	LogFile string `yaml:"log_file"`
}

// BridgeConfig configures the host side of the browser bridge.
type BridgeConfig struct {
	// Port forces a specific WebSocket port. Zero means scan the
	// default range and take the first free port.
	Port int `yaml:"port"`
}

// BrowserConfig configures how the host gets a client attached.
type BrowserConfig struct {
	// AutoLaunch controls the lazy browser launch on the first
	// unattached tool call (default: true).
	AutoLaunch *bool `yaml:"auto_launch"`
	// DebuggerURL is parsed from the YAML file but read by neither binary;
	// webclaw-worker takes its DevTools endpoint from --devtools-url.
	DebuggerURL string `yaml:"debugger_url"`
}

// SnapshotConfig tunes default snapshot rendering.
type SnapshotConfig struct {
	// MaxTokens bounds snapshot output when the tool call does not
	// (default: 4000).
	MaxTokens int `yaml:"max_tokens"`
}

// env is the environment overlay; WEBCLAW_PORT is the documented contract.
type env struct {
	Port int `envconfig:"PORT"`
}

// DefaultConfig provides reasonable defaults for local use.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "webclaw",
			Version: "0.3.1",
			LogFile: "webclaw.log",
		},
		Snapshot: SnapshotConfig{
			MaxTokens: 4000,
		},
	}
}

// Load reads the optional YAML config and applies the environment overlay.
// An empty path skips the file; a named file must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	var overrides env
	if err := envconfig.Process("webclaw", &overrides); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if overrides.Port != 0 {
		cfg.Bridge.Port = overrides.Port
	}

	return cfg, cfg.Validate()
}

// Validate ensures the host can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port %d out of range", c.Bridge.Port)
	}
	return nil
}

// IsAutoLaunch reports whether the lazy browser launch is enabled
// (default: true).
func (b BrowserConfig) IsAutoLaunch() bool {
	if b.AutoLaunch == nil {
		return true
	}
	return *b.AutoLaunch
}

// EffectiveMaxTokens returns the snapshot budget with the default applied.
func (s SnapshotConfig) EffectiveMaxTokens() int {
	if s.MaxTokens <= 0 {
		return 4000
	}
	return s.MaxTokens
}

// Package config loads the on-disk peer/service configuration (spec §6
// "Persisted state") and overlays a handful of environment variables for
// deployment-time overrides.
//
// Grounded on the teacher's api/pkg/config/config.go envconfig.Process
// pattern for env overlay and on its broader use of gopkg.in/yaml.v3
// elsewhere in the monorepo for on-disk structured config.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// PeerConfig is one entry of the on-disk peer list (spec §3 "Peer
// config", §6 "a config file enumerating peers...").
type PeerConfig struct {
	Hostname  string   `yaml:"hostname,omitempty"`
	Port      uint16   `yaml:"port"`
	Position  string   `yaml:"position"` // "left" | "right" | "top" | "bottom"
	FixedIPs  []string `yaml:"fixed_ips,omitempty"`
	EnterHook string   `yaml:"enter_hook,omitempty"`
}

// BackendPreference is an optional, auto-detected-when-absent choice of
// capture/emulation backend order (spec §6).
type BackendPreference struct {
	Capture   []string `yaml:"capture,omitempty"`
	Emulation []string `yaml:"emulation,omitempty"`
}

// Config is the full on-disk configuration plus env overlay.
type Config struct {
	ListenPort             uint16            `yaml:"listen_port" envconfig:"LANBRIDGE_LISTEN_PORT"`
	CertDir                string            `yaml:"cert_dir,omitempty" envconfig:"LANBRIDGE_CERT_DIR"`
	SocketPath             string            `yaml:"-" envconfig:"LANBRIDGE_SOCKET_PATH"`
	LogLevel               string            `yaml:"log_level,omitempty" envconfig:"LANBRIDGE_LOG_LEVEL"`
	ReleaseChord           []uint32          `yaml:"release_chord,omitempty"`
	Backends               BackendPreference `yaml:"backends,omitempty"`
	Peers                  []PeerConfig      `yaml:"peers,omitempty"`
	AuthorizedFingerprints map[string]string `yaml:"authorized_fingerprints,omitempty"`
}

// Load reads the YAML config at path (creating an empty default in
// memory if the file does not exist — first-run behavior matching
// cert.LoadOrGenerate's own first-run posture) and overlays
// LANBRIDGE_-prefixed environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env overlay: %w", err)
	}

	if cfg.CertDir == "" {
		cfg.CertDir = DefaultCertDir()
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath()
	}
	return cfg, nil
}

// Save writes cfg back to path as YAML. Nothing in the daemon calls it:
// frontend requests change only in-memory state.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Default returns a Config with only the built-in defaults applied
// (listen port 4242, log level "info"). Load starts from it, so a YAML
// value overrides these and a set environment variable overrides both.
func Default() *Config {
	return &Config{
		ListenPort:             4242,
		LogLevel:               "info",
		AuthorizedFingerprints: make(map[string]string),
	}
}

// DefaultSocketPath returns the frontend socket path for the current OS
// (spec §6 "Frontend socket").
func DefaultSocketPath() string {
	switch runtime.GOOS {
	case "windows":
		return "127.0.0.1:5252"
	case "darwin":
		home, _ := os.UserHomeDir()
		return home + "/Library/Caches/lan-mouse-socket.sock"
	default:
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return dir + "/lan-mouse-socket.sock"
		}
		return "/tmp/lan-mouse-socket.sock"
	}
}

// DefaultCertDir returns where the device key pair and self-signed
// certificate are persisted (spec §6 "Persisted state").
func DefaultCertDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir + "/lanbridged"
	}
	home, _ := os.UserHomeDir()
	return home + "/.local/share/lanbridged"
}

// DefaultConfigPath returns where the on-disk peer/service config file
// lives absent an explicit --config flag.
func DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir + "/lanbridged/config.yaml"
	}
	home, _ := os.UserHomeDir()
	return home + "/.config/lanbridged/config.yaml"
}

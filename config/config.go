package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Backend identifies which audio engine drives the tracks
type Backend string

const (
	BackendSynth    Backend = "synth"    // software engine through the sound card
	BackendHeadless Backend = "headless" // silent engine, logs triggers only
)

// AudioConfig selects and tunes the audio engine
type AudioConfig struct {
	Backend    Backend `json:"backend"`
	SampleRate int     `json:"sampleRate,omitempty"`
}

// ServerConfig configures the HTTP control surface
type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // path to a GIMP .gpl file, embedded default when empty
}

// Config is the main configuration structure.
// It holds startup preferences only; patterns and track settings are never written here.
type Config struct {
	Audio  AudioConfig  `json:"audio"`
	Server ServerConfig `json:"server,omitempty"`
	UI     UIConfig     `json:"ui,omitempty"`
	Seed   int64        `json:"seed,omitempty"` // 0 = seed from the clock
	Debug  bool         `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Backend:    BackendSynth,
			SampleRate: 44100,
		},
		Server: ServerConfig{
			Addr: ":8787",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ambient-looper"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Fields missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

// normalize replaces unusable values with defaults
func (c *Config) normalize() {
	def := DefaultConfig()
	switch c.Audio.Backend {
	case BackendSynth, BackendHeadless:
	default:
		c.Audio.Backend = def.Audio.Backend
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating the directory if needed
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

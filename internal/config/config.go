// Package config handles configuration loading, validation, and hot
// reload for pasteup.
//
// The configuration file lives in the pasteup data directory and is
// TOML by default; JSON and YAML are accepted by extension. Environment
// variables prefixed with PASTEUP_ override file values. The Config
// struct is shared read-mostly state: the engine reads it on every
// intercepted event and mutates exactly one flag (the upload
// confirmation), so all access goes through the RWMutex accessors.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 2

// Config is the root configuration.
type Config struct {
	Version  int            `toml:"version" json:"version" yaml:"version"`
	Uploader UploaderConfig `toml:"uploader" json:"uploader" yaml:"uploader"`
	Confirm  ConfirmConfig  `toml:"confirm" json:"confirm" yaml:"confirm"`
	History  HistoryConfig  `toml:"history" json:"history" yaml:"history"`
	Notify   NotifyConfig   `toml:"notify" json:"notify" yaml:"notify"`
	IPC      IPCConfig      `toml:"ipc" json:"ipc" yaml:"ipc"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// UploaderConfig selects and configures the upload provider.
type UploaderConfig struct {
	// Strategy names the provider: "imgur", "catbox", "custom",
	// or ""/"none" to disable uploads.
	Strategy string `toml:"strategy" json:"strategy" yaml:"strategy"`

	// ClientID is the imgur API client ID used for anonymous uploads.
	ClientID string `toml:"client_id" json:"client_id" yaml:"client_id"`

	// Credential is the provider secret: an imgur access token, a
	// catbox user hash, or whatever the custom spec's auth header
	// needs. Empty means anonymous.
	Credential string `toml:"credential" json:"credential" yaml:"credential"`

	// CredentialSealed marks Credential as sealed with the machine
	// key (see internal/security) rather than plaintext.
	CredentialSealed bool `toml:"credential_sealed" json:"credential_sealed" yaml:"credential_sealed"`

	// SpecPath points at the JSON spec file for the custom provider.
	SpecPath string `toml:"spec_path" json:"spec_path" yaml:"spec_path"`

	// TimeoutSec bounds one upload HTTP exchange.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`

	// MaxUploadMB rejects files larger than this before any network IO.
	MaxUploadMB int64 `toml:"max_upload_mb" json:"max_upload_mb" yaml:"max_upload_mb"`
}

// ConfirmConfig controls the upload confirmation gate.
type ConfirmConfig struct {
	// BeforeUpload asks once per eligible event before uploading.
	// Flipped to false when the user answers "always upload".
	BeforeUpload bool `toml:"before_upload" json:"before_upload" yaml:"before_upload"`
}

// HistoryConfig controls the upload journal.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// NotifyConfig controls transient desktop notices.
type NotifyConfig struct {
	Enabled   bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	TimeoutMS int  `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// IPCConfig controls the daemon socket.
type IPCConfig struct {
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
	TimeoutSec int    `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// LoggingConfig mirrors internal/logging.Config in file form.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int64  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns the documented defaults. Uploads start
// disabled (no strategy) and confirmation starts enabled.
func DefaultConfig() *Config {
	dir := PasteupDir()

	return &Config{
		Version: Version,
		Uploader: UploaderConfig{
			Strategy:    "",
			TimeoutSec:  60,
			MaxUploadMB: 10,
		},
		Confirm: ConfirmConfig{
			BeforeUpload: true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
		},
		Notify: NotifyConfig{
			Enabled:   true,
			TimeoutMS: 5000,
		},
		IPC: IPCConfig{
			SocketPath: DefaultSocketPath(),
			TimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformLogDir(), "pasteupd.log"),
			MaxSizeMB:  50,
			MaxBackups: 4,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PasteupDir(), "config.toml")
}

// Load reads configuration from path, merged over defaults. A missing
// file yields the defaults. The format follows the file extension
// (TOML, JSON, YAML); unknown extensions are tried as TOML.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func decode(data []byte, ext string, cfg *Config) error {
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to path in the format of its
// extension, creating directories as needed. The write goes through a
// temp file and rename so a crash never leaves a truncated config.
func Save(cfg *Config, path string) error {
	cfg.mu.RLock()
	data, err := encode(cfg, filepath.Ext(path))
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func encode(cfg *Config, ext string) ([]byte, error) {
	switch ext {
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// ApplyEnvOverrides applies PASTEUP_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("PASTEUP_UPLOADER"); v != "" {
		c.Uploader.Strategy = v
	}
	if v := os.Getenv("PASTEUP_CLIENT_ID"); v != "" {
		c.Uploader.ClientID = v
	}
	if v := os.Getenv("PASTEUP_CREDENTIAL"); v != "" {
		c.Uploader.Credential = v
		c.Uploader.CredentialSealed = false
	}
	if v := os.Getenv("PASTEUP_UPLOADER_SPEC"); v != "" {
		c.Uploader.SpecPath = v
	}
	if v := os.Getenv("PASTEUP_CONFIRM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Confirm.BeforeUpload = b
		}
	}
	if v := os.Getenv("PASTEUP_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("PASTEUP_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("PASTEUP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PASTEUP_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	c.mu.RLock()
	dirs := []string{
		PasteupDir(),
		filepath.Dir(c.History.Path),
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.IPC.SocketPath),
	}
	c.mu.RUnlock()

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Clone returns an independent deep copy.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:  c.Version,
		Uploader: c.Uploader,
		Confirm:  c.Confirm,
		History:  c.History,
		Notify:   c.Notify,
		IPC:      c.IPC,
		Logging:  c.Logging,
	}
	return clone
}

// ConfirmBeforeUpload reads the confirmation flag under the lock.
func (c *Config) ConfirmBeforeUpload() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Confirm.BeforeUpload
}

// SetConfirmBeforeUpload writes the confirmation flag under the lock.
func (c *Config) SetConfirmBeforeUpload(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Confirm.BeforeUpload = v
}

// UploaderSettings returns a copy of the uploader section.
func (c *Config) UploaderSettings() UploaderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Uploader
}

// SetUploaderSettings replaces the uploader section.
func (c *Config) SetUploaderSettings(u UploaderConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Uploader = u
}

// NotifySettings returns a copy of the notify section.
func (c *Config) NotifySettings() NotifyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Notify
}

// HistorySettings returns a copy of the history section.
func (c *Config) HistorySettings() HistoryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.History
}

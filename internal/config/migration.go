package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult describes what a configuration migration changed.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Changes     []string
	BackupPath  string
}

// Migrated reports whether the migration actually rewrote the file.
func (r *MigrationResult) Migrated() bool {
	return r != nil && r.FromVersion < r.ToVersion
}

// Migrate upgrades the configuration file at path to the current
// schema version, in place. The original file is kept next to it as a
// timestamped backup. A missing or already-current file is a no-op.
func Migrate(path string) (*MigrationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MigrationResult{FromVersion: Version, ToVersion: Version}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw, err := decodeRaw(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	from := rawInt(raw["version"], 1)
	if from >= Version {
		return &MigrationResult{FromVersion: from, ToVersion: from}, nil
	}

	cfg := DefaultConfig()
	var changes []string
	switch from {
	case 1:
		changes = migrateV1(raw, cfg)
	default:
		return nil, fmt.Errorf("cannot migrate config version %d", from)
	}
	cfg.Version = Version

	backup, err := backupConfig(path, data)
	if err != nil {
		return nil, err
	}
	if err := Save(cfg, path); err != nil {
		return nil, err
	}

	return &MigrationResult{
		FromVersion: from,
		ToVersion:   Version,
		Changes:     changes,
		BackupPath:  backup,
	}, nil
}

// migrateV1 maps the v1 schema onto cfg. Version 1 was imgur-only: an
// [imgur] table with client_id and access_token, plus a top-level
// confirm_before_upload flag.
func migrateV1(raw map[string]interface{}, cfg *Config) []string {
	var changes []string

	if imgur, ok := raw["imgur"].(map[string]interface{}); ok {
		if id, ok := imgur["client_id"].(string); ok && id != "" {
			cfg.Uploader.Strategy = "imgur"
			cfg.Uploader.ClientID = id
			changes = append(changes, "moved imgur.client_id to uploader.client_id")
		}
		if tok, ok := imgur["access_token"].(string); ok && tok != "" {
			cfg.Uploader.Strategy = "imgur"
			cfg.Uploader.Credential = tok
			changes = append(changes, "moved imgur.access_token to uploader.credential")
		}
	}

	if b, ok := raw["confirm_before_upload"].(bool); ok {
		cfg.Confirm.BeforeUpload = b
		changes = append(changes, "moved confirm_before_upload to confirm.before_upload")
	}

	return changes
}

func decodeRaw(data []byte, ext string) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return raw, nil
}

// rawInt coerces the number types the three decoders produce.
func rawInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func backupConfig(path string, data []byte) (string, error) {
	backup := fmt.Sprintf("%s.bak-%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return "", fmt.Errorf("back up config: %w", err)
	}
	return backup, nil
}

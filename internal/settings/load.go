package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Lookup resolves one environment variable. Injectable so tests never
// depend on the process environment.
type Lookup func(key string) string

// OS returns a Lookup backed by the process environment.
func OS() Lookup { return os.Getenv }

// overrides is the clawboot.toml schema. Everything is optional; absent
// fields keep their defaults.
type overrides struct {
	Sync struct {
		Interval  string `toml:"interval"`
		Transfers int    `toml:"transfers"`
	} `toml:"sync"`
	Gateway Gateway `toml:"gateway"`
	Store   Store   `toml:"store"`
	Paths   struct {
		ConfigDir    string `toml:"config_dir"`
		WorkspaceDir string `toml:"workspace_dir"`
	} `toml:"paths"`
}

// Load resolves Settings from defaults, the optional override file, and the
// environment, in that order.
func Load(env Lookup) (Settings, error) {
	home := env("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return Settings{}, fmt.Errorf("SET_HOME: %w", err)
		}
	}
	set := defaults(home)

	ovPath := env("CLAWBOOT_SETTINGS")
	if ovPath == "" {
		ovPath = filepath.Join(set.ConfigDir, "clawboot.toml")
	}
	if err := applyOverrides(&set, home, ovPath); err != nil {
		return Settings{}, err
	}

	if v := env("R2_ACCESS_KEY_ID"); v != "" {
		set.Store.AccessKeyID = v
	}
	if v := env("R2_SECRET_ACCESS_KEY"); v != "" {
		set.Store.SecretAccessKey = v
	}
	// R2 account IDs are Cloudflare account IDs, so CF_ACCOUNT_ID doubles
	// as the store account when R2_ACCOUNT_ID is not set separately.
	if v := env("R2_ACCOUNT_ID"); v != "" {
		set.Store.AccountID = v
	} else if v := env("CF_ACCOUNT_ID"); v != "" {
		set.Store.AccountID = v
	}
	if v := env("R2_BUCKET"); v != "" {
		set.Store.Bucket = v
	}
	set.Gateway.Token = env("OPENCLAW_GATEWAY_TOKEN")
	set.DevMode = env("OPENCLAW_DEV_MODE") == "true"

	set = Normalize(set)
	if err := Validate(set); err != nil {
		return Settings{}, err
	}
	return set, nil
}

func applyOverrides(set *Settings, home, path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var ov overrides
	if err := toml.Unmarshal(blob, &ov); err != nil {
		return fmt.Errorf("SET_PARSE: %w", err)
	}
	if ov.Paths.ConfigDir != "" || ov.Paths.WorkspaceDir != "" {
		configDir := set.ConfigDir
		workspaceDir := set.WorkspaceDir
		if ov.Paths.ConfigDir != "" {
			configDir = expand(home, ov.Paths.ConfigDir)
		}
		if ov.Paths.WorkspaceDir != "" {
			workspaceDir = expand(home, ov.Paths.WorkspaceDir)
		}
		rebased := defaults(home)
		rebased.Store = set.Store
		rebased.Gateway = set.Gateway
		*set = rebaseDirs(rebased, configDir, workspaceDir)
	}
	if ov.Sync.Interval != "" {
		d, err := time.ParseDuration(ov.Sync.Interval)
		if err != nil {
			return fmt.Errorf("SET_INTERVAL: %w", err)
		}
		set.SyncInterval = d
	}
	if ov.Sync.Transfers > 0 {
		set.Transfers = ov.Sync.Transfers
	}
	if ov.Gateway.Executable != "" {
		set.Gateway.Executable = ov.Gateway.Executable
	}
	if ov.Gateway.Port > 0 {
		set.Gateway.Port = ov.Gateway.Port
	}
	if ov.Gateway.MinVersion != "" {
		set.Gateway.MinVersion = ov.Gateway.MinVersion
	}
	if ov.Store.Bucket != "" {
		set.Store.Bucket = ov.Store.Bucket
	}
	if ov.Store.AccessKeyID != "" {
		set.Store.AccessKeyID = ov.Store.AccessKeyID
	}
	if ov.Store.SecretAccessKey != "" {
		set.Store.SecretAccessKey = ov.Store.SecretAccessKey
	}
	if ov.Store.AccountID != "" {
		set.Store.AccountID = ov.Store.AccountID
	}
	return nil
}

func rebaseDirs(set Settings, configDir, workspaceDir string) Settings {
	set.ConfigDir = configDir
	set.ConfigPath = filepath.Join(configDir, ConfigFileName)
	set.LegacyConfigPath = filepath.Join(configDir, LegacyConfigFileName)
	set.CheckpointPath = filepath.Join(configDir, ".sync-checkpoint")
	set.ChangedListPath = filepath.Join(configDir, ".changed-files")
	set.LastSyncPath = filepath.Join(configDir, ".last-sync")
	set.SyncLogPath = filepath.Join(configDir, "sync.log")
	set.RcloneConfPath = filepath.Join(configDir, "rclone.conf")
	set.LockPaths = []string{
		filepath.Join(configDir, "gateway.lock"),
		filepath.Join(configDir, "onboarding.lock"),
	}
	set.WorkspaceDir = workspaceDir
	set.SkillsDir = filepath.Join(workspaceDir, "skills")
	return set
}

func expand(home, path string) string {
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Normalize fills any zero fields back to their defaults.
func Normalize(set Settings) Settings {
	if set.Store.Bucket == "" {
		set.Store.Bucket = defaultBucket
	}
	if set.Gateway.Executable == "" {
		set.Gateway.Executable = defaultGatewayExe
	}
	if set.Gateway.Port == 0 {
		set.Gateway.Port = defaultGatewayPort
	}
	if set.SyncInterval == 0 {
		set.SyncInterval = defaultSyncInterval
	}
	if set.Transfers == 0 {
		set.Transfers = defaultTransfers
	}
	return set
}

// Validate rejects settings the orchestrator cannot safely run with.
func Validate(set Settings) error {
	if set.ConfigDir == "" || set.WorkspaceDir == "" {
		return fmt.Errorf("SET_PATHS: missing config or workspace directory")
	}
	if set.Gateway.Port < 1 || set.Gateway.Port > 65535 {
		return fmt.Errorf("SET_PORT: invalid gateway port %d", set.Gateway.Port)
	}
	if set.SyncInterval < 5*time.Second {
		return fmt.Errorf("SET_INTERVAL: sync interval %s below 5s floor", set.SyncInterval)
	}
	if set.Transfers < 1 {
		return fmt.Errorf("SET_TRANSFERS: invalid transfer count %d", set.Transfers)
	}
	return nil
}

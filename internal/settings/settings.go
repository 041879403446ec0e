package settings

import (
	"path/filepath"
	"time"
)

// Store holds object-store credentials for the state bucket.
type Store struct {
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	AccountID       string `toml:"account_id"`
	Bucket          string `toml:"bucket"`
}

// HasCredentials reports whether enough is configured to reach the bucket.
// Without credentials both restore and sync are skipped; local state is
// authoritative.
func (s Store) HasCredentials() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != "" && s.AccountID != ""
}

// Gateway describes the foreground gateway process clawboot hands off to.
type Gateway struct {
	Executable string `toml:"executable"`
	Port       int    `toml:"port"`
	Token      string `toml:"-"`
	MinVersion string `toml:"min_version"`
}

// Settings is the resolved orchestrator configuration: defaults, then the
// optional clawboot.toml override file, then environment variables.
type Settings struct {
	Home             string
	ConfigDir        string
	ConfigPath       string
	LegacyConfigPath string
	WorkspaceDir     string
	SkillsDir        string

	CheckpointPath  string
	ChangedListPath string
	LastSyncPath    string
	SyncLogPath     string
	RcloneConfPath  string
	LockPaths       []string

	ConfigPrefix       string
	LegacyConfigPrefix string
	WorkspacePrefix    string
	SkillsPrefix       string

	SyncInterval time.Duration
	Transfers    int
	DevMode      bool

	Store   Store
	Gateway Gateway
}

const (
	// ConfigFileName is the current on-disk name of the gateway config.
	ConfigFileName = "openclaw.json"
	// LegacyConfigFileName is the pre-rename document name, kept only as a
	// one-time migration source.
	LegacyConfigFileName = "clawdbot.json"

	defaultBucket       = "openclaw-state"
	defaultGatewayExe   = "openclaw"
	defaultGatewayPort  = 18789
	defaultSyncInterval = 30 * time.Second
	defaultTransfers    = 8
	defaultMinVersion   = "2026.1.0"
)

func defaults(home string) Settings {
	configDir := filepath.Join(home, ".openclaw")
	workspaceDir := filepath.Join(home, "workspace")
	return Settings{
		Home:             home,
		ConfigDir:        configDir,
		ConfigPath:       filepath.Join(configDir, ConfigFileName),
		LegacyConfigPath: filepath.Join(configDir, LegacyConfigFileName),
		WorkspaceDir:     workspaceDir,
		SkillsDir:        filepath.Join(workspaceDir, "skills"),

		CheckpointPath:  filepath.Join(configDir, ".sync-checkpoint"),
		ChangedListPath: filepath.Join(configDir, ".changed-files"),
		LastSyncPath:    filepath.Join(configDir, ".last-sync"),
		SyncLogPath:     filepath.Join(configDir, "sync.log"),
		RcloneConfPath:  filepath.Join(configDir, "rclone.conf"),
		LockPaths: []string{
			filepath.Join(configDir, "gateway.lock"),
			filepath.Join(configDir, "onboarding.lock"),
		},

		ConfigPrefix:       "openclaw",
		LegacyConfigPrefix: "clawdbot",
		WorkspacePrefix:    "workspace",
		SkillsPrefix:       "skills",

		SyncInterval: defaultSyncInterval,
		Transfers:    defaultTransfers,

		Store:   Store{Bucket: defaultBucket},
		Gateway: Gateway{Executable: defaultGatewayExe, Port: defaultGatewayPort, MinVersion: defaultMinVersion},
	}
}

// ScanExcludeDirs are directory names never descended into when scanning
// for changed files.
func ScanExcludeDirs() []string {
	return []string{"node_modules", ".git"}
}

// PushExcludes are glob patterns never pushed to the remote store.
func PushExcludes() []string {
	return []string{"*.lock", "*.log", "*.tmp", ".*.tmp", "node_modules/**", ".git/**"}
}

// WorkspacePushExcludes extends PushExcludes for the workspace prefix; the
// skills subtree is pushed separately under its own prefix.
func WorkspacePushExcludes() []string {
	return append(PushExcludes(), "skills/**")
}

package restore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"clawboot/internal/remote"
	"clawboot/internal/settings"
)

func testSettings(t *testing.T) settings.Settings {
	t.Helper()
	set, err := settings.Load(func(key string) string {
		switch key {
		case "HOME":
			return t.TempDir()
		case "R2_ACCESS_KEY_ID":
			return "ak"
		case "R2_SECRET_ACCESS_KEY":
			return "sk"
		case "R2_ACCOUNT_ID":
			return "acct"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("settings load failed: %v", err)
	}
	return set
}

func newCoordinator(set settings.Settings, mem *remote.Mem) *Coordinator {
	return New(mem, set, nil, zerolog.Nop())
}

func TestRunSkipsWithoutCredentials(t *testing.T) {
	set := testSettings(t)
	set.Store = settings.Store{Bucket: set.Store.Bucket}
	mem := remote.NewMem()
	mem.Put("openclaw", "openclaw.json", "{}")

	newCoordinator(set, mem).Run(context.Background())

	if len(mem.PullCalls) != 0 {
		t.Fatalf("expected no pulls, got %v", mem.PullCalls)
	}
	if _, err := os.Stat(set.ConfigPath); !os.IsNotExist(err) {
		t.Fatal("config restored despite missing credentials")
	}
}

func TestRunRestoresCurrentFormatConfig(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()
	mem.Put("openclaw", "openclaw.json", `{"gateway":{}}`)
	mem.Put("openclaw", "credentials/oauth.json", "{}")

	newCoordinator(set, mem).Run(context.Background())

	blob, err := os.ReadFile(set.ConfigPath)
	if err != nil {
		t.Fatalf("config not restored: %v", err)
	}
	if string(blob) != `{"gateway":{}}` {
		t.Fatalf("unexpected config content %q", blob)
	}
	if _, err := os.Stat(filepath.Join(set.ConfigDir, "credentials", "oauth.json")); err != nil {
		t.Fatalf("sibling object not restored: %v", err)
	}
}

func TestRunMigratesLegacyConfig(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()
	mem.Put("clawdbot", "clawdbot.json", `{"legacy":true}`)

	newCoordinator(set, mem).Run(context.Background())

	if _, err := os.Stat(set.LegacyConfigPath); !os.IsNotExist(err) {
		t.Fatal("legacy file should have been renamed")
	}
	blob, err := os.ReadFile(set.ConfigPath)
	if err != nil {
		t.Fatalf("migrated config missing: %v", err)
	}
	if string(blob) != `{"legacy":true}` {
		t.Fatalf("unexpected migrated content %q", blob)
	}
}

// Migration must never clobber a current-format file that already exists
// locally.
func TestRunMigrationIsNonDestructive(t *testing.T) {
	set := testSettings(t)
	if err := os.MkdirAll(set.ConfigDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(set.ConfigPath, []byte(`{"current":true}`), 0o644); err != nil {
		t.Fatalf("seed current config failed: %v", err)
	}
	mem := remote.NewMem()
	mem.Put("clawdbot", "clawdbot.json", `{"legacy":true}`)

	newCoordinator(set, mem).Run(context.Background())

	blob, err := os.ReadFile(set.ConfigPath)
	if err != nil {
		t.Fatalf("read config failed: %v", err)
	}
	if string(blob) != `{"current":true}` {
		t.Fatalf("current config clobbered: %q", blob)
	}
	if _, err := os.Stat(set.LegacyConfigPath); err != nil {
		t.Fatalf("legacy file should remain: %v", err)
	}
}

func TestRunStartsFreshWhenNothingRemote(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()

	newCoordinator(set, mem).Run(context.Background())

	if _, err := os.Stat(set.ConfigPath); !os.IsNotExist(err) {
		t.Fatal("no config should exist after fresh start")
	}
}

// An empty workspace prefix leaves the local directory untouched — not
// even created.
func TestRunEmptyWorkspacePrefixUntouched(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()
	mem.Put("openclaw", "openclaw.json", "{}")

	newCoordinator(set, mem).Run(context.Background())

	if _, err := os.Stat(set.WorkspaceDir); !os.IsNotExist(err) {
		t.Fatal("workspace dir should not be created for empty prefix")
	}
}

func TestRunRestoresWorkspaceAndSkills(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()
	mem.Put("workspace", "notes.md", "hello")
	mem.Put("skills", "writer/SKILL.md", "skill")

	newCoordinator(set, mem).Run(context.Background())

	if _, err := os.Stat(filepath.Join(set.WorkspaceDir, "notes.md")); err != nil {
		t.Fatalf("workspace not restored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(set.SkillsDir, "writer", "SKILL.md")); err != nil {
		t.Fatalf("skills not restored: %v", err)
	}
}

// A config-side failure must not stop the workspace restore, and no
// failure may escape Run.
func TestRunRemoteFailuresAreNonFatal(t *testing.T) {
	set := testSettings(t)
	mem := remote.NewMem()
	mem.FailList = map[string]error{"openclaw": errors.New("exit status 3")}
	mem.Put("workspace", "notes.md", "hello")

	newCoordinator(set, mem).Run(context.Background())

	if _, err := os.Stat(filepath.Join(set.WorkspaceDir, "notes.md")); err != nil {
		t.Fatalf("workspace restore should proceed after config failure: %v", err)
	}
}

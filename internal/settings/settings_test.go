package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookup(m map[string]string) Lookup {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	set, err := Load(lookup(map[string]string{"HOME": home}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if set.ConfigPath != filepath.Join(home, ".openclaw", "openclaw.json") {
		t.Fatalf("unexpected config path %q", set.ConfigPath)
	}
	if set.SkillsDir != filepath.Join(home, "workspace", "skills") {
		t.Fatalf("unexpected skills dir %q", set.SkillsDir)
	}
	if set.Store.Bucket != "openclaw-state" {
		t.Fatalf("unexpected bucket %q", set.Store.Bucket)
	}
	if set.SyncInterval != 30*time.Second {
		t.Fatalf("unexpected interval %v", set.SyncInterval)
	}
	if set.Gateway.Port != 18789 {
		t.Fatalf("unexpected port %d", set.Gateway.Port)
	}
	if set.Store.HasCredentials() {
		t.Fatal("expected no credentials")
	}
}

func TestLoadEnvWinsOverDefaults(t *testing.T) {
	home := t.TempDir()
	set, err := Load(lookup(map[string]string{
		"HOME":                   home,
		"R2_ACCESS_KEY_ID":       "ak",
		"R2_SECRET_ACCESS_KEY":   "sk",
		"R2_ACCOUNT_ID":          "acct",
		"R2_BUCKET":              "custom-bucket",
		"OPENCLAW_GATEWAY_TOKEN": "tok",
		"OPENCLAW_DEV_MODE":      "true",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !set.Store.HasCredentials() {
		t.Fatal("expected credentials")
	}
	if set.Store.Bucket != "custom-bucket" {
		t.Fatalf("unexpected bucket %q", set.Store.Bucket)
	}
	if set.Gateway.Token != "tok" || !set.DevMode {
		t.Fatalf("gateway env not applied: %+v", set.Gateway)
	}
}

// CF_ACCOUNT_ID is the Cloudflare account ID, which is also the R2 account
// ID, so it completes the credential set when R2_ACCOUNT_ID is absent.
func TestLoadAccountIDFallsBackToCFAccountID(t *testing.T) {
	home := t.TempDir()
	set, err := Load(lookup(map[string]string{
		"HOME":                 home,
		"R2_ACCESS_KEY_ID":     "ak",
		"R2_SECRET_ACCESS_KEY": "sk",
		"CF_ACCOUNT_ID":        "cf-acct",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !set.Store.HasCredentials() {
		t.Fatal("expected credentials via CF_ACCOUNT_ID fallback")
	}
	if set.Store.AccountID != "cf-acct" {
		t.Fatalf("unexpected account id %q", set.Store.AccountID)
	}

	set, err = Load(lookup(map[string]string{
		"HOME":                 home,
		"R2_ACCESS_KEY_ID":     "ak",
		"R2_SECRET_ACCESS_KEY": "sk",
		"R2_ACCOUNT_ID":        "r2-acct",
		"CF_ACCOUNT_ID":        "cf-acct",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if set.Store.AccountID != "r2-acct" {
		t.Fatalf("R2_ACCOUNT_ID should win over the fallback, got %q", set.Store.AccountID)
	}
}

func TestLoadOverridesFile(t *testing.T) {
	home := t.TempDir()
	ovPath := filepath.Join(home, "clawboot.toml")
	content := strings.Join([]string{
		`[sync]`,
		`interval = "2m"`,
		`transfers = 4`,
		`[gateway]`,
		`executable = "/opt/openclaw/bin/openclaw"`,
		`port = 9000`,
		`[paths]`,
		`config_dir = "~/state/.openclaw"`,
		`workspace_dir = "~/state/workspace"`,
	}, "\n")
	if err := os.WriteFile(ovPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write overrides failed: %v", err)
	}
	set, err := Load(lookup(map[string]string{"HOME": home, "CLAWBOOT_SETTINGS": ovPath}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if set.SyncInterval != 2*time.Minute || set.Transfers != 4 {
		t.Fatalf("sync overrides not applied: %v %d", set.SyncInterval, set.Transfers)
	}
	if set.Gateway.Port != 9000 {
		t.Fatalf("gateway override not applied: %d", set.Gateway.Port)
	}
	wantConfig := filepath.Join(home, "state", ".openclaw")
	if set.ConfigDir != wantConfig {
		t.Fatalf("config dir not rebased: %q", set.ConfigDir)
	}
	if set.CheckpointPath != filepath.Join(wantConfig, ".sync-checkpoint") {
		t.Fatalf("checkpoint not rebased: %q", set.CheckpointPath)
	}
	if set.SkillsDir != filepath.Join(home, "state", "workspace", "skills") {
		t.Fatalf("skills dir not rebased: %q", set.SkillsDir)
	}
}

func TestLoadRejectsBadOverrides(t *testing.T) {
	home := t.TempDir()
	cases := map[string]string{
		"SET_PARSE":    `interval = [`,
		"SET_INTERVAL": "[sync]\ninterval = \"1s\"",
	}
	for code, content := range cases {
		ovPath := filepath.Join(t.TempDir(), "clawboot.toml")
		if err := os.WriteFile(ovPath, []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		_, err := Load(lookup(map[string]string{"HOME": home, "CLAWBOOT_SETTINGS": ovPath}))
		if err == nil || !strings.Contains(err.Error(), code) {
			t.Fatalf("expected %s error, got %v", code, err)
		}
	}
}

func TestValidate(t *testing.T) {
	set := Normalize(defaults(t.TempDir()))
	if err := Validate(set); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
	bad := set
	bad.Gateway.Port = 0
	if err := Validate(bad); err == nil || !strings.Contains(err.Error(), "SET_PORT") {
		t.Fatalf("expected SET_PORT error, got %v", err)
	}
}

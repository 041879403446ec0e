package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"clawboot/internal/gatewaycfg"
	"clawboot/internal/settings"
)

type fakeRunner struct {
	name string
	args []string
	err  error
	// written is created at the config path when the run "succeeds",
	// mimicking the onboarding command writing its config.
	written string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.name = name
	f.args = args
	if f.err != nil {
		return f.err
	}
	if f.written != "" {
		if err := os.WriteFile(f.written, []byte("{}"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func testSettings(t *testing.T) settings.Settings {
	t.Helper()
	set, err := settings.Load(func(key string) string {
		if key == "HOME" {
			return t.TempDir()
		}
		return ""
	})
	if err != nil {
		t.Fatalf("settings load failed: %v", err)
	}
	if err := os.MkdirAll(set.ConfigDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	return set
}

func TestEnsureConfigKeepsExistingFile(t *testing.T) {
	set := testSettings(t)
	if err := os.WriteFile(set.ConfigPath, []byte(`{"keep":true}`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	runner := &fakeRunner{}
	svc := New(set, gatewaycfg.Env{AnthropicKey: "sk-ant"}, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if runner.name != "" {
		t.Fatal("onboarding ran despite existing config")
	}
	blob, err := os.ReadFile(set.ConfigPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(blob) != `{"keep":true}` {
		t.Fatalf("existing config rewritten: %q", blob)
	}
}

func TestEnsureConfigWritesEmptyDocumentWithoutCredentials(t *testing.T) {
	set := testSettings(t)
	runner := &fakeRunner{}
	svc := New(set, gatewaycfg.Env{}, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if runner.name != "" {
		t.Fatal("onboarding ran without credentials")
	}
	blob, err := os.ReadFile(set.ConfigPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if strings.TrimSpace(string(blob)) != "{}" {
		t.Fatalf("expected empty document, got %q", blob)
	}
}

func TestEnsureConfigPrefersAIGateway(t *testing.T) {
	set := testSettings(t)
	runner := &fakeRunner{written: set.ConfigPath}
	env := gatewaycfg.Env{
		CFAPIKey:     "cf-key",
		CFAccountID:  "acct",
		CFGatewayID:  "gw",
		AnthropicKey: "sk-ant",
		OpenAIKey:    "sk-oai",
	}
	svc := New(set, env, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if runner.name != set.Gateway.Executable {
		t.Fatalf("unexpected executable %q", runner.name)
	}
	joined := strings.Join(runner.args, " ")
	for _, want := range []string{
		"onboard",
		"--non-interactive",
		"--port 18789",
		"--provider cloudflare-ai-gateway",
		"--cf-account-id acct",
		"--cf-gateway-id gw",
		"--api-key cf-key",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if strings.Contains(joined, "sk-ant") || strings.Contains(joined, "sk-oai") {
		t.Fatalf("lower-priority keys leaked into args: %s", joined)
	}
}

func TestEnsureConfigFallsBackToAnthropic(t *testing.T) {
	set := testSettings(t)
	runner := &fakeRunner{written: set.ConfigPath}
	svc := New(set, gatewaycfg.Env{AnthropicKey: "sk-ant", OpenAIKey: "sk-oai"}, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "--provider anthropic --api-key sk-ant") {
		t.Fatalf("expected anthropic onboarding, got %s", joined)
	}
}

func TestEnsureConfigRecoversFromOnboardingFailure(t *testing.T) {
	set := testSettings(t)
	runner := &fakeRunner{err: errors.New("exit status 2")}
	svc := New(set, gatewaycfg.Env{OpenAIKey: "sk-oai"}, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if _, err := os.Stat(set.ConfigPath); err != nil {
		t.Fatalf("fallback document missing: %v", err)
	}
}

func TestEnsureConfigRecoversWhenOnboardingWritesNothing(t *testing.T) {
	set := testSettings(t)
	runner := &fakeRunner{}
	svc := New(set, gatewaycfg.Env{OpenAIKey: "sk-oai"}, zerolog.Nop()).WithRunner(runner)

	if err := svc.EnsureConfig(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	blob, err := os.ReadFile(filepath.Clean(set.ConfigPath))
	if err != nil {
		t.Fatalf("fallback document missing: %v", err)
	}
	if strings.TrimSpace(string(blob)) != "{}" {
		t.Fatalf("expected empty document, got %q", blob)
	}
}

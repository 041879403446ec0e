// Package provision performs the one-shot, non-interactive onboarding run
// on a sandbox whose restore produced no config at all. It picks the first
// available credential source; with none available it writes an empty
// document and leaves all provider setup to reconciliation.
package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"clawboot/internal/gatewaycfg"
	"clawboot/internal/settings"
)

// Runner executes the onboarding command. Extracted for tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

type Service struct {
	Set    settings.Settings
	Env    gatewaycfg.Env
	Log    zerolog.Logger
	runner Runner
}

func New(set settings.Settings, env gatewaycfg.Env, log zerolog.Logger) *Service {
	return &Service{
		Set:    set,
		Env:    env,
		Log:    log.With().Str("component", "provision").Logger(),
		runner: execRunner{},
	}
}

// WithRunner swaps the subprocess runner; test hook.
func (s *Service) WithRunner(runner Runner) *Service {
	s.runner = runner
	return s
}

// EnsureConfig guarantees a config file exists after it returns. An
// existing file (restored or surviving a warm restart) is left alone.
func (s *Service) EnsureConfig(ctx context.Context) error {
	if _, err := os.Stat(s.Set.ConfigPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if args, source := s.onboardArgs(); args != nil {
		s.Log.Info().Str("source", source).Msg("running non-interactive onboarding")
		if err := s.runner.Run(ctx, s.Set.Gateway.Executable, args...); err == nil {
			if _, statErr := os.Stat(s.Set.ConfigPath); statErr == nil {
				return nil
			}
			s.Log.Warn().Msg("onboarding produced no config, writing empty document")
		} else {
			s.Log.Warn().Err(err).Msg("onboarding failed, writing empty document")
		}
	} else {
		s.Log.Info().Msg("no provider credentials available, writing empty document")
	}
	return gatewaycfg.Save(s.Set.ConfigPath, gatewaycfg.Document{})
}

// onboardArgs maps the first available credential source onto the
// onboarding command line. Order mirrors operator preference: the AI
// Gateway trio, then the direct Anthropic key, then the direct OpenAI key.
func (s *Service) onboardArgs() ([]string, string) {
	base := []string{
		"onboard",
		"--non-interactive",
		"--port", strconv.Itoa(s.Set.Gateway.Port),
		"--bind", "0.0.0.0",
	}
	switch {
	case s.Env.CFAPIKey != "" && s.Env.CFAccountID != "" && s.Env.CFGatewayID != "":
		return append(base,
			"--provider", "cloudflare-ai-gateway",
			"--cf-account-id", s.Env.CFAccountID,
			"--cf-gateway-id", s.Env.CFGatewayID,
			"--api-key", s.Env.CFAPIKey,
		), "cloudflare-ai-gateway"
	case s.Env.AnthropicKey != "":
		return append(base, "--provider", "anthropic", "--api-key", s.Env.AnthropicKey), "anthropic"
	case s.Env.OpenAIKey != "":
		return append(base, "--provider", "openai", "--api-key", s.Env.OpenAIKey), "openai"
	}
	return nil, ""
}

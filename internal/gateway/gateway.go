// Package gateway spawns and supervises the foreground gateway process.
// The orchestrator spawns the gateway, waits, and propagates its exit
// code, keeping its own PID visible to the container runtime.
package gateway

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"clawboot/internal/settings"
)

type Process struct {
	Set settings.Settings
	Log zerolog.Logger

	// dialTimeout bounds the running-instance probe.
	dialTimeout time.Duration
}

func New(set settings.Settings, log zerolog.Logger) *Process {
	return &Process{
		Set:         set,
		Log:         log.With().Str("component", "gateway").Logger(),
		dialTimeout: 500 * time.Millisecond,
	}
}

// Running reports whether a gateway already answers on the fixed port.
// Used as the duplicate-instance guard: a warm restart of the bootstrap
// must not start a second gateway.
func (p *Process) Running() bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(p.Set.Gateway.Port))
	conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Args builds the gateway command line: fixed port, verbose output,
// allow-unconfigured boot, bind-all, and token auth only when a token is
// configured.
func (p *Process) Args() []string {
	args := []string{
		"gateway",
		"--port", strconv.Itoa(p.Set.Gateway.Port),
		"--verbose",
		"--allow-unconfigured",
		"--bind", "0.0.0.0",
	}
	if p.Set.Gateway.Token != "" {
		args = append(args, "--auth", "token", "--token", p.Set.Gateway.Token)
	} else {
		args = append(args, "--auth", "none")
	}
	return args
}

// Run starts the gateway and blocks until it exits, returning its exit
// code. This is the final handoff: from here on the gateway's lifetime is
// the container's lifetime.
func (p *Process) Run(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, p.Set.Gateway.Executable, p.Args()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	p.Log.Info().Str("executable", p.Set.Gateway.Executable).Int("port", p.Set.Gateway.Port).Msg("handing off to gateway")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// VersionCheck probes `<gateway> --version` and warns when the installed
// release predates the configured minimum. Best-effort: a probe failure is
// logged and boot continues.
func (p *Process) VersionCheck(ctx context.Context) {
	min := p.Set.Gateway.MinVersion
	if min == "" {
		return
	}
	out, err := exec.CommandContext(ctx, p.Set.Gateway.Executable, "--version").Output()
	if err != nil {
		p.Log.Warn().Err(err).Msg("gateway version probe failed")
		return
	}
	version := ParseVersion(string(out))
	if version == "" {
		p.Log.Warn().Str("output", strings.TrimSpace(string(out))).Msg("gateway version output unrecognized")
		return
	}
	if semver.Compare("v"+version, "v"+min) < 0 {
		p.Log.Warn().Str("installed", version).Str("minimum", min).Msg("gateway older than supported minimum")
	}
}

// ParseVersion extracts the first semver-looking token from version
// output such as "openclaw 2026.1.14 (build abc)".
func ParseVersion(out string) string {
	for _, field := range strings.Fields(out) {
		candidate := strings.TrimPrefix(field, "v")
		if semver.IsValid("v" + candidate) {
			return candidate
		}
	}
	return ""
}

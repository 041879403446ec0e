// Package syncloop mirrors local state to the object store while the
// gateway runs. The loop is cancellable through its context so it can be
// tested; in production nobody cancels it and it dies with the container.
package syncloop

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clawboot/internal/audit"
	"clawboot/internal/fsutil"
	"clawboot/internal/remote"
	"clawboot/internal/settings"
)

type Loop struct {
	Remote   remote.Client
	Set      settings.Settings
	Audit    *audit.Logger
	Log      zerolog.Logger
	Interval time.Duration

	// now is swapped by tests to pin timestamps.
	now func() time.Time
}

// Report describes one cycle for observability and tests.
type Report struct {
	Changed []string `json:"changed,omitempty"`
	Pushed  bool     `json:"pushed"`
	Failed  []string `json:"failedPrefixes,omitempty"`
}

func New(client remote.Client, set settings.Settings, auditLog *audit.Logger, log zerolog.Logger) *Loop {
	return &Loop{
		Remote:   client,
		Set:      set,
		Audit:    auditLog,
		Log:      log.With().Str("component", "sync").Logger(),
		Interval: set.SyncInterval,
		now:      time.Now,
	}
}

// Start launches the loop in the background and returns immediately. The
// returned channel closes when the loop exits.
func (l *Loop) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
	return done
}

// Run blocks, executing one cycle per interval until ctx is cancelled. The
// checkpoint marker is created up front so the first scan has a baseline.
func (l *Loop) Run(ctx context.Context) {
	if err := l.ensureCheckpoint(); err != nil {
		l.Log.Error().Err(err).Msg("cannot create checkpoint marker, sync disabled")
		return
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	l.Log.Info().Dur("interval", l.Interval).Msg("sync loop started")
	for {
		select {
		case <-ctx.Done():
			l.Log.Info().Msg("sync loop stopped")
			return
		case <-ticker.C:
			if _, err := l.RunOnce(ctx); err != nil {
				l.Log.Warn().Err(err).Msg("sync cycle failed")
			}
		}
	}
}

func (l *Loop) ensureCheckpoint() error {
	if _, err := os.Stat(l.Set.CheckpointPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return fsutil.Touch(l.Set.CheckpointPath)
}

// RunOnce performs one scan-and-push cycle. The changed-file snapshot is
// taken before the push; files changing during the push are caught next
// cycle. The checkpoint advances after the push attempt whether or not it
// succeeded — a persistently failing push is not retried for the same
// files. Availability over retry-until-success.
func (l *Loop) RunOnce(ctx context.Context) (Report, error) {
	if err := l.ensureCheckpoint(); err != nil {
		return Report{}, err
	}
	since, err := fsutil.MTime(l.Set.CheckpointPath)
	if err != nil {
		return Report{}, err
	}

	changed, err := l.scan(since)
	if err != nil {
		return Report{}, err
	}
	if len(changed) == 0 {
		return Report{}, nil
	}
	report := Report{Changed: changed}

	if err := fsutil.AtomicWrite(l.Set.ChangedListPath, []byte(strings.Join(changed, "\n")+"\n"), 0o644); err != nil {
		l.Log.Warn().Err(err).Msg("cannot record changed-file list")
	}

	report.Failed = l.push(ctx)
	report.Pushed = len(report.Failed) == 0

	if err := fsutil.AtomicWrite(l.Set.LastSyncPath, []byte(l.now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		l.Log.Warn().Err(err).Msg("cannot record last-sync timestamp")
	}
	if err := fsutil.Touch(l.Set.CheckpointPath); err != nil {
		return report, err
	}
	return report, nil
}

// scan covers the config and workspace trees; the skills tree lives under
// the workspace and needs no separate pass.
func (l *Loop) scan(since time.Time) ([]string, error) {
	var all []string
	for _, dir := range []string{l.Set.ConfigDir, l.Set.WorkspaceDir} {
		changed, err := fsutil.ChangedSince(dir, since, settings.ScanExcludeDirs())
		if err != nil {
			return nil, err
		}
		all = append(all, changed...)
	}
	return all, nil
}

type pushTarget struct {
	dir      string
	prefix   string
	excludes []string
	required bool
}

// push sends the three trees to their prefixes. Each failure is logged and
// the remaining targets still run.
func (l *Loop) push(ctx context.Context) []string {
	targets := []pushTarget{
		{dir: l.Set.ConfigDir, prefix: l.Set.ConfigPrefix, excludes: settings.PushExcludes(), required: true},
		{dir: l.Set.WorkspaceDir, prefix: l.Set.WorkspacePrefix, excludes: settings.WorkspacePushExcludes()},
		{dir: l.Set.SkillsDir, prefix: l.Set.SkillsPrefix, excludes: settings.PushExcludes()},
	}
	var failed []string
	for _, target := range targets {
		if !target.required {
			if _, err := os.Stat(target.dir); err != nil {
				continue
			}
		}
		err := l.Remote.Push(ctx, target.dir, target.prefix, remote.TransferOptions{Excludes: target.excludes})
		if err != nil {
			failed = append(failed, target.prefix)
			ev := l.Log.Warn().Str("prefix", target.prefix).Err(err)
			var rerr *remote.Error
			if errors.As(err, &rerr) {
				ev = ev.Int("exitStatus", rerr.ExitStatus)
			}
			ev.Msg("push failed, continuing cycle")
			l.event(audit.StatusFailed, err.Error(), target.prefix)
			continue
		}
		l.event(audit.StatusOK, "", target.prefix)
	}
	return failed
}

func (l *Loop) event(status, detail, prefix string) {
	_ = l.Audit.Log(audit.Event{Op: "push", Status: status, Detail: detail, Fields: map[string]string{"prefix": prefix}})
}

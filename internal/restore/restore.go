// Package restore brings local state back from the object store on boot.
// Everything here is best-effort: a sandbox must come up and serve even
// when its backup is unreachable, so no failure escapes this package.
package restore

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"clawboot/internal/audit"
	"clawboot/internal/remote"
	"clawboot/internal/settings"
)

type Coordinator struct {
	Remote remote.Client
	Set    settings.Settings
	Audit  *audit.Logger
	Log    zerolog.Logger
}

func New(client remote.Client, set settings.Settings, auditLog *audit.Logger, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		Remote: client,
		Set:    set,
		Audit:  auditLog,
		Log:    log.With().Str("component", "restore").Logger(),
	}
}

// Run restores config, workspace and skills state. It never returns an
// error; partial state is acceptable and reported through the log.
func (c *Coordinator) Run(ctx context.Context) {
	if !c.Set.Store.HasCredentials() {
		c.Log.Info().Msg("no store credentials, starting with local state only")
		c.event("restore", audit.StatusSkipped, "", map[string]string{"reason": "no-credentials"})
		return
	}
	c.restoreConfig(ctx)
	c.restoreTree(ctx, c.Set.WorkspacePrefix, c.Set.WorkspaceDir)
	c.restoreTree(ctx, c.Set.SkillsPrefix, c.Set.SkillsDir)
}

// restoreConfig probes the current-format prefix first, then the legacy
// one. Finding neither is a fresh sandbox, not an error.
func (c *Coordinator) restoreConfig(ctx context.Context) {
	entries, err := c.Remote.List(ctx, c.Set.ConfigPrefix)
	if err != nil {
		c.warnRemote("list config prefix", c.Set.ConfigPrefix, err)
		return
	}
	if hasEntry(entries, settings.ConfigFileName) {
		c.pull(ctx, c.Set.ConfigPrefix, c.Set.ConfigDir)
		return
	}

	legacy, err := c.Remote.List(ctx, c.Set.LegacyConfigPrefix)
	if err != nil {
		c.warnRemote("list legacy prefix", c.Set.LegacyConfigPrefix, err)
		return
	}
	if len(legacy) == 0 {
		c.Log.Info().Msg("no remote config found, starting fresh")
		c.event("restore-config", audit.StatusSkipped, "", map[string]string{"reason": "fresh"})
		return
	}
	if c.pull(ctx, c.Set.LegacyConfigPrefix, c.Set.ConfigDir) {
		c.migrateLegacyName()
	}
}

// migrateLegacyName renames clawdbot.json to openclaw.json exactly once.
// An existing current-format file is never overwritten.
func (c *Coordinator) migrateLegacyName() {
	if _, err := os.Stat(c.Set.LegacyConfigPath); err != nil {
		return
	}
	if _, err := os.Stat(c.Set.ConfigPath); err == nil {
		c.Log.Info().Msg("current config already present, keeping legacy file as-is")
		return
	} else if !errors.Is(err, os.ErrNotExist) {
		c.Log.Warn().Err(err).Msg("cannot stat current config, skipping migration")
		return
	}
	if err := os.Rename(c.Set.LegacyConfigPath, c.Set.ConfigPath); err != nil {
		c.Log.Warn().Err(err).Msg("legacy config migration failed")
		return
	}
	c.Log.Info().Str("from", c.Set.LegacyConfigPath).Str("to", c.Set.ConfigPath).Msg("migrated legacy config name")
	c.event("migrate-config", audit.StatusOK, "", nil)
}

// restoreTree pulls a prefix only when it holds at least one object, so an
// empty remote prefix leaves the local directory untouched.
func (c *Coordinator) restoreTree(ctx context.Context, prefix, dir string) {
	entries, err := c.Remote.List(ctx, prefix)
	if err != nil {
		c.warnRemote("list prefix", prefix, err)
		return
	}
	if len(entries) == 0 {
		return
	}
	c.pull(ctx, prefix, dir)
}

func (c *Coordinator) pull(ctx context.Context, prefix, dir string) bool {
	if err := c.Remote.Pull(ctx, prefix, dir, remote.TransferOptions{}); err != nil {
		c.warnRemote("pull prefix", prefix, err)
		return false
	}
	c.Log.Info().Str("prefix", prefix).Str("dir", dir).Msg("restored from object store")
	c.event("restore-pull", audit.StatusOK, "", map[string]string{"prefix": prefix})
	return true
}

func (c *Coordinator) warnRemote(what, prefix string, err error) {
	ev := c.Log.Warn().Str("prefix", prefix).Err(err)
	var rerr *remote.Error
	if errors.As(err, &rerr) {
		ev = ev.Int("exitStatus", rerr.ExitStatus)
	}
	ev.Msgf("%s failed, continuing boot", what)
	c.event("restore-pull", audit.StatusFailed, err.Error(), map[string]string{"prefix": prefix})
}

func (c *Coordinator) event(op, status, detail string, fields map[string]string) {
	_ = c.Audit.Log(audit.Event{Op: op, Status: status, Detail: detail, Fields: fields})
}

func hasEntry(entries []remote.Entry, name string) bool {
	for _, e := range entries {
		if e.Path == name {
			return true
		}
	}
	return false
}

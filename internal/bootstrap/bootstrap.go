// Package bootstrap sequences a sandbox boot: duplicate-instance guard,
// state restore, config provisioning and reconciliation, stale-lock
// cleanup, background sync, and finally the gateway handoff.
package bootstrap

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"clawboot/internal/audit"
	"clawboot/internal/gateway"
	"clawboot/internal/gatewaycfg"
	"clawboot/internal/provision"
	"clawboot/internal/remote"
	"clawboot/internal/restore"
	"clawboot/internal/settings"
	"clawboot/internal/syncloop"
)

// Restorer pulls persisted state down from the object store.
type Restorer interface {
	Run(ctx context.Context)
}

// Provisioner guarantees a config file exists.
type Provisioner interface {
	EnsureConfig(ctx context.Context) error
}

// SyncStarter launches the background mirror loop.
type SyncStarter interface {
	Start(ctx context.Context) <-chan struct{}
}

// GatewayProcess is the foreground process the boot hands off to.
type GatewayProcess interface {
	Running() bool
	VersionCheck(ctx context.Context)
	Run(ctx context.Context) (int, error)
}

type Orchestrator struct {
	Set settings.Settings
	Env gatewaycfg.Env
	Log zerolog.Logger

	Restore   Restorer
	Provision Provisioner
	Sync      SyncStarter
	Gateway   GatewayProcess

	// WriteConf materializes storage-tool credentials before the first
	// transfer. Only called when credentials are configured.
	WriteConf func() error
}

// New wires the production collaborators.
func New(set settings.Settings, env gatewaycfg.Env, log zerolog.Logger) *Orchestrator {
	auditLog := audit.New(set.SyncLogPath)
	client := remote.NewRclone(set.RcloneConfPath, set.Store.Bucket, set.Transfers, log)
	return &Orchestrator{
		Set:       set,
		Env:       env,
		Log:       log.With().Str("component", "bootstrap").Logger(),
		Restore:   restore.New(client, set, auditLog, log),
		Provision: provision.New(set, env, log),
		Sync:      syncloop.New(client, set, auditLog, log),
		Gateway:   gateway.New(set, log),
		WriteConf: func() error {
			return client.WriteConf(remote.Credentials{
				AccessKeyID:     set.Store.AccessKeyID,
				SecretAccessKey: set.Store.SecretAccessKey,
				AccountID:       set.Store.AccountID,
			})
		},
	}
}

// Run executes the boot sequence and returns the process exit code. Every
// step short of the gateway handoff is best-effort: a sandbox with broken
// storage credentials still boots a working local gateway.
func (o *Orchestrator) Run(ctx context.Context) int {
	if o.Gateway.Running() {
		o.Log.Info().Int("port", o.Set.Gateway.Port).Msg("gateway already running, nothing to do")
		return 0
	}

	if err := os.MkdirAll(o.Set.ConfigDir, 0o700); err != nil {
		o.Log.Error().Err(err).Str("dir", o.Set.ConfigDir).Msg("cannot create config directory")
		return 1
	}

	hasCreds := o.Set.Store.HasCredentials()
	if hasCreds {
		if err := o.WriteConf(); err != nil {
			o.Log.Warn().Err(err).Msg("cannot write storage credentials, remote state disabled")
			hasCreds = false
		} else {
			o.Restore.Run(ctx)
		}
	} else {
		o.Log.Info().Msg("no storage credentials, running from local state only")
	}

	if err := o.Provision.EnsureConfig(ctx); err != nil {
		o.Log.Warn().Err(err).Msg("provisioning failed, continuing with whatever config exists")
	}
	if err := o.reconcile(); err != nil {
		o.Log.Error().Err(err).Msg("cannot write reconciled config")
		return 1
	}
	o.removeStaleLocks()

	if hasCreds {
		o.Sync.Start(ctx)
	}

	o.Gateway.VersionCheck(ctx)
	code, err := o.Gateway.Run(ctx)
	if err != nil {
		o.Log.Error().Err(err).Msg("gateway failed to start")
	}
	return code
}

// reconcile applies the environment onto the on-disk document. Load is
// lenient, so a corrupt or missing file degrades to reconciling from
// empty rather than aborting the boot.
func (o *Orchestrator) reconcile() error {
	doc := gatewaycfg.Load(o.Set.ConfigPath, o.Log)
	doc = gatewaycfg.Reconcile(doc, o.Env, o.Log)
	return gatewaycfg.Save(o.Set.ConfigPath, doc)
}

// removeStaleLocks clears lock files a crashed previous run left behind.
// The duplicate-instance guard already ran, so any lock present is stale.
func (o *Orchestrator) removeStaleLocks() {
	for _, path := range o.Set.LockPaths {
		err := os.Remove(path)
		switch {
		case err == nil:
			o.Log.Info().Str("path", path).Msg("removed stale lock")
		case errors.Is(err, os.ErrNotExist):
		default:
			o.Log.Warn().Err(err).Str("path", path).Msg("cannot remove stale lock")
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clawboot/internal/audit"
	"clawboot/internal/bootstrap"
	"clawboot/internal/gatewaycfg"
	"clawboot/internal/remote"
	"clawboot/internal/restore"
	"clawboot/internal/settings"
	"clawboot/internal/status"
	"clawboot/internal/syncloop"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ex, ok := err.(ExitCoder); ok {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

// env is the single process-environment read; everything below it takes
// injected values.
type env struct {
	set settings.Settings
	cfg gatewaycfg.Env
	log zerolog.Logger
}

func loadEnv(verbose bool) (env, error) {
	set, err := settings.Load(settings.OS())
	if err != nil {
		return env{}, err
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
	cfg := gatewaycfg.FromLookup(os.Getenv)
	// The document and the spawned process must agree on the port when an
	// override file moves it off the default.
	cfg.GatewayPort = set.Gateway.Port
	return env{set: set, cfg: cfg, log: log}, nil
}

func remoteClient(e env) (*remote.Rclone, error) {
	if !e.set.Store.HasCredentials() {
		return nil, &exitError{code: 1, msg: "REMOTE_CREDENTIALS: R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_ACCOUNT_ID (or CF_ACCOUNT_ID) are required"}
	}
	client := remote.NewRclone(e.set.RcloneConfPath, e.set.Store.Bucket, e.set.Transfers, e.log)
	if err := client.WriteConf(remote.Credentials{
		AccessKeyID:     e.set.Store.AccessKeyID,
		SecretAccessKey: e.set.Store.SecretAccessKey,
		AccountID:       e.set.Store.AccountID,
	}); err != nil {
		return nil, err
	}
	return client, nil
}

func newRootCmd() *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:           "clawboot",
		Short:         "Bootstrap and supervise a sandboxed agent gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	cmd.AddCommand(newUpCmd(&verbose))
	cmd.AddCommand(newRestoreCmd(&verbose))
	cmd.AddCommand(newReconcileCmd(&verbose, &jsonOutput))
	cmd.AddCommand(newSyncCmd(&verbose, &jsonOutput))
	cmd.AddCommand(newStatusCmd(&verbose, &jsonOutput))
	cmd.AddCommand(newVersionCmd(&jsonOutput))

	return cmd
}

func newUpCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "up",
		Aliases: []string{"boot", "start"},
		Short:   "Run the full boot sequence and hand off to the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*verbose)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			code := bootstrap.New(e.set, e.cfg, e.log).Run(ctx)
			if code != 0 {
				return &exitError{code: code, msg: fmt.Sprintf("BOOT_EXIT: gateway exited with status %d", code)}
			}
			return nil
		},
	}
}

func newRestoreCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Pull persisted state down from the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*verbose)
			if err != nil {
				return err
			}
			client, err := remoteClient(e)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.set.ConfigDir, 0o700); err != nil {
				return err
			}
			auditLog := audit.New(e.set.SyncLogPath)
			restore.New(client, e.set, auditLog, e.log).Run(cmd.Context())
			return nil
		},
	}
}

func newReconcileCmd(verbose, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Apply environment-declared config onto the gateway document",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*verbose)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.set.ConfigDir, 0o700); err != nil {
				return err
			}
			doc := gatewaycfg.Load(e.set.ConfigPath, e.log)
			doc = gatewaycfg.Reconcile(doc, e.cfg, e.log)
			if err := gatewaycfg.Save(e.set.ConfigPath, doc); err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, doc, "")
			}
			fmt.Printf("reconciled %s\n", e.set.ConfigPath)
			return nil
		},
	}
}

func newSyncCmd(verbose, jsonOutput *bool) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push changed local state to the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*verbose)
			if err != nil {
				return err
			}
			client, err := remoteClient(e)
			if err != nil {
				return err
			}
			auditLog := audit.New(e.set.SyncLogPath)
			loop := syncloop.New(client, e.set, auditLog, e.log)
			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				loop.Run(ctx)
				return nil
			}
			report, err := loop.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, report, "")
			}
			if len(report.Changed) == 0 {
				fmt.Println("nothing changed since last checkpoint")
				return nil
			}
			fmt.Printf("pushed %d changed file(s)\n", len(report.Changed))
			if len(report.Failed) > 0 {
				return &exitError{code: 2, msg: fmt.Sprintf("SYNC_PUSH: %d prefix(es) failed to push", len(report.Failed))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep syncing on the configured interval")
	return cmd
}

func newStatusCmd(verbose, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"doctor", "st"},
		Short:   "Run boot-environment diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*verbose)
			if err != nil {
				return err
			}
			report := status.New(e.set).Run()
			if *jsonOutput {
				return print(true, report, "")
			}
			if report.GatewayRunning {
				fmt.Println("gateway: running")
			} else {
				fmt.Println("gateway: not running")
			}
			if report.LastSync != "" {
				fmt.Printf("last sync: %s\n", report.LastSync)
			}
			if report.CheckpointAge != "" {
				fmt.Printf("checkpoint age: %s\n", report.CheckpointAge)
			}
			for _, f := range report.Findings {
				fmt.Printf("- [%s] %s: %s\n", f.Level, f.Code, f.Message)
			}
			if !report.Healthy {
				return &exitError{code: 1, msg: "ST_UNHEALTHY: diagnostics found errors"}
			}
			fmt.Println("healthy")
			return nil
		},
	}
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"clawboot/internal/fsutil"
)

// Runner executes one storage-tool invocation and returns its stdout.
// Extracted so tests can assert on argument construction without rclone
// installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Credentials identify the R2 account backing the state bucket.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	AccountID       string
}

// Rclone talks to the bucket through the rclone binary using a generated,
// non-user-authored config file.
type Rclone struct {
	ConfPath  string
	Bucket    string
	Transfers int

	runner Runner
	log    zerolog.Logger
}

const remoteName = "r2"

// NewRclone builds the production client. Call WriteConf before the first
// transfer of a process.
func NewRclone(confPath, bucket string, transfers int, log zerolog.Logger) *Rclone {
	return &Rclone{
		ConfPath:  confPath,
		Bucket:    bucket,
		Transfers: transfers,
		runner:    execRunner{},
		log:       log.With().Str("component", "remote").Logger(),
	}
}

// WithRunner swaps the subprocess runner; test hook.
func (r *Rclone) WithRunner(runner Runner) *Rclone {
	r.runner = runner
	return r
}

// WriteConf regenerates the rclone config for the given credentials. The
// file is rewritten on every boot so rotated keys take effect without
// manual cleanup.
func (r *Rclone) WriteConf(creds Credentials) error {
	conf := strings.Join([]string{
		"[" + remoteName + "]",
		"type = s3",
		"provider = Cloudflare",
		"access_key_id = " + creds.AccessKeyID,
		"secret_access_key = " + creds.SecretAccessKey,
		"endpoint = https://" + creds.AccountID + ".r2.cloudflarestorage.com",
		"acl = private",
		"no_check_bucket = true",
		"",
	}, "\n")
	if err := os.MkdirAll(filepath.Dir(r.ConfPath), 0o755); err != nil {
		return err
	}
	return fsutil.AtomicWrite(r.ConfPath, []byte(conf), 0o600)
}

func (r *Rclone) remotePath(prefix string) string {
	return remoteName + ":" + r.Bucket + "/" + strings.TrimSuffix(prefix, "/")
}

func (r *Rclone) commonFlags() []string {
	return []string{
		"--config", r.ConfPath,
		"--transfers", strconv.Itoa(r.Transfers),
		"--fast-list",
		"--s3-no-check-bucket",
	}
}

func (r *Rclone) List(ctx context.Context, prefix string) ([]Entry, error) {
	args := append([]string{"lsjson", r.remotePath(prefix), "--recursive", "--files-only"}, r.commonFlags()...)
	out, err := r.run(ctx, "LIST", args)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("REMOTE_LIST: decode listing: %w", err)
	}
	return entries, nil
}

func (r *Rclone) Pull(ctx context.Context, prefix, dir string, opts TransferOptions) error {
	args := append([]string{"copy", r.remotePath(prefix), dir}, r.commonFlags()...)
	args = appendExcludes(args, opts.Excludes)
	_, err := r.run(ctx, "COPY", args)
	return err
}

func (r *Rclone) Push(ctx context.Context, dir, prefix string, opts TransferOptions) error {
	args := append([]string{"sync", dir, r.remotePath(prefix)}, r.commonFlags()...)
	args = appendExcludes(args, opts.Excludes)
	_, err := r.run(ctx, "SYNC", args)
	return err
}

func appendExcludes(args, excludes []string) []string {
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	return args
}

func (r *Rclone) run(ctx context.Context, op string, args []string) ([]byte, error) {
	r.log.Debug().Str("op", op).Strs("args", args).Msg("rclone invocation")
	out, err := r.runner.Run(ctx, "rclone", args...)
	if err == nil {
		return out, nil
	}
	rerr := &Error{Op: op, ExitStatus: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		rerr.ExitStatus = exitErr.ExitCode()
		rerr.Output = strings.TrimSpace(string(exitErr.Stderr))
	}
	return nil, rerr
}

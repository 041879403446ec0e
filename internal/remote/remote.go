// Package remote is the capability boundary to the object store holding
// sandbox state. Callers see list/pull/push of path prefixes; the production
// implementation shells out to rclone, tests use the in-memory store.
package remote

import (
	"context"
	"fmt"
)

// Entry is one object under a prefix, path relative to that prefix.
type Entry struct {
	Path string `json:"Path"`
	Size int64  `json:"Size"`
}

// TransferOptions shape a pull or push. Excludes are rclone-style globs:
// a bare pattern matches a file's base name, "dir/**" excludes a subtree.
type TransferOptions struct {
	Excludes []string
}

// Client is the object-store contract the orchestrator requires. Every
// method blocks until the transfer finishes; failures are expected to be
// logged and swallowed by callers (a sandbox must boot even when its backup
// is unreachable).
type Client interface {
	// List enumerates objects under prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Pull copies every object under prefix into the local directory dir.
	Pull(ctx context.Context, prefix, dir string, opts TransferOptions) error
	// Push mirrors the local directory dir to prefix, removing remote
	// objects that no longer exist locally.
	Push(ctx context.Context, dir, prefix string, opts TransferOptions) error
}

// Error carries the exit status of a failed storage-tool invocation so the
// caller can log it verbatim.
type Error struct {
	Op         string
	ExitStatus int
	Output     string
	Err        error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("REMOTE_%s: exit status %d: %s", e.Op, e.ExitStatus, e.Output)
	}
	return fmt.Sprintf("REMOTE_%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

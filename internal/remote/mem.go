package remote

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Mem is an in-memory Client for tests. Objects are keyed "prefix/relpath".
// Fail maps inject per-prefix errors.
type Mem struct {
	mu      sync.Mutex
	Objects map[string]string

	FailList map[string]error
	FailPull map[string]error
	FailPush map[string]error

	PullCalls []TransferCall
	PushCalls []TransferCall
}

// TransferCall records one pull or push for assertions.
type TransferCall struct {
	Prefix   string
	Dir      string
	Excludes []string
}

func NewMem() *Mem {
	return &Mem{Objects: map[string]string{}}
}

// Put seeds one object under prefix.
func (m *Mem) Put(prefix, rel, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[path.Join(prefix, rel)] = content
}

func (m *Mem) List(ctx context.Context, prefix string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailList[prefix]; err != nil {
		return nil, err
	}
	var entries []Entry
	for key, content := range m.Objects {
		rel, ok := underPrefix(key, prefix)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Path: rel, Size: int64(len(content))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *Mem) Pull(ctx context.Context, prefix, dir string, opts TransferOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PullCalls = append(m.PullCalls, TransferCall{Prefix: prefix, Dir: dir, Excludes: opts.Excludes})
	if err := m.FailPull[prefix]; err != nil {
		return err
	}
	for key, content := range m.Objects {
		rel, ok := underPrefix(key, prefix)
		if !ok || Excluded(rel, opts.Excludes) {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mem) Push(ctx context.Context, dir, prefix string, opts TransferOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PushCalls = append(m.PushCalls, TransferCall{Prefix: prefix, Dir: dir, Excludes: opts.Excludes})
	if err := m.FailPush[prefix]; err != nil {
		return err
	}
	// Sync semantics: the prefix mirrors the directory, stale objects go.
	for key := range m.Objects {
		if _, ok := underPrefix(key, prefix); ok {
			delete(m.Objects, key)
		}
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if Excluded(rel, opts.Excludes) {
			return nil
		}
		blob, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		m.Objects[path.Join(prefix, rel)] = string(blob)
		return nil
	})
}

func underPrefix(key, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// Excluded applies the TransferOptions glob convention: "dir/**" excludes a
// subtree, any other pattern matches against the base name.
func Excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if sub, ok := strings.CutSuffix(pattern, "/**"); ok {
			if rel == sub || strings.HasPrefix(rel, sub+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

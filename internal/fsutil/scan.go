package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ChangedSince walks root and returns the relative paths of regular files
// whose modification time is strictly after since. Directories whose base
// name appears in skipDirs are not descended into. A missing root yields an
// empty result, not an error.
func ChangedSince(root string, since time.Time, skipDirs []string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	skip := make(map[string]struct{}, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = struct{}{}
	}
	var changed []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries vanishing mid-walk are expected while the gateway runs.
			return nil
		}
		if d.IsDir() {
			if _, ok := skip[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(since) {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			changed = append(changed, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(changed)
	return changed, nil
}

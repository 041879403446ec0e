package fsutil

import (
	"fmt"
	"os"
)

// AtomicWrite replaces path with data through a tmp+rename pair, so a
// reader (the gateway, a concurrent push) sees either the old content or
// the new, never a torn file. The tmp file is removed if the rename fails.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

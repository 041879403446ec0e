package fsutil

import (
	"os"
	"time"
)

// Touch creates path as an empty file if it does not exist, and advances
// its modification time to now. The mtime of such a marker file is the
// low-water mark for "changed since" scans.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// MTime returns the modification time of path.
func MTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Package fsutil is the narrow filesystem capability the secure-channel
// core calls out to (spec.md §6): ReadFile, WriteFileAtomic,
// AppendFile, EnsureDir. Concurrent writers to the same path are
// serialized (spec.md §5's "coarse lock... around known_hosts append")
// by a keyed mutex, so unrelated paths never contend with each other.
package fsutil

import (
	"os"
	"path/filepath"
	"sync"

	gerr "github.com/bfix-edu/sshcore/errors"
)

// pathLocks hands out one *sync.Mutex per path, created on first use.
var pathLocks sync.Map // map[string]*sync.Mutex

func lockFor(path string) *sync.Mutex {
	v, _ := pathLocks.LoadOrStore(path, new(sync.Mutex))
	return v.(*sync.Mutex)
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return gerr.New(err, "ensure dir %q", dir)
	}
	return nil
}

// ReadFile reads the whole file at path.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gerr.New(err, "read file %q", path)
	}
	return data, nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteFileAtomic writes data to path by writing to a temp file in the
// same directory and renaming it over the target, so a crash mid-write
// never leaves a half-written host_key or users.json behind.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	lock := lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return gerr.New(err, "create temp file in %q", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return gerr.New(err, "write temp file %q", tmpName)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return gerr.New(err, "chmod temp file %q", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return gerr.New(err, "close temp file %q", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return gerr.New(err, "rename %q to %q", tmpName, path)
	}
	return nil
}

// AppendFile appends data to the file at path, creating it (and its
// parent directory) if necessary. Concurrent appends to the same path
// are serialized by a per-path mutex.
func AppendFile(path string, data []byte) error {
	lock := lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return gerr.New(err, "open file %q for append", path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return gerr.New(err, "append to file %q", path)
	}
	return nil
}

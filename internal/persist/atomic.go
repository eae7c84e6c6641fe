// Package persist implements the write-temp-then-rename atomic file
// persistence shared by the signing key store and the revocation set. It
// generalizes the teacher's FileStorage directory/mode conventions
// (internal/rotation/storage.FileStorage), correcting its direct
// os.WriteFile calls to an atomic rename so a crash mid-write can never
// leave a half-written state file behind.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DirMode and FileMode are the restricted permissions every persisted state
// file in this repository uses: the config directory is 0700, individual
// state files are 0600.
const (
	DirMode  os.FileMode = 0700
	FileMode os.FileMode = 0600
)

// EnsureDir creates dir with DirMode if it does not already exist. Safe to
// call repeatedly.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, DirMode)
}

// WriteFileAtomic writes data to path by writing to a sibling temp file
// first and renaming it into place, so readers never observe a partial
// write. os.CreateTemp creates the temp file at mode 0600, and it is
// chmod'd to FileMode before any data is written, so the data is never
// readable at a wider permission.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(FileMode); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// ReadJSON unmarshals the JSON file at path into v. loaded is false (with a
// nil error) when path does not exist, so callers can distinguish "nothing
// persisted yet" from a genuine read failure.
func ReadJSON(path string, v interface{}) (loaded bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

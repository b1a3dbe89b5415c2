// Package atomicfile provides crash-safe file writes: content lands in
// full or not at all, even if the process is killed mid-write.
package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/voyager-vpm/voyager/internal/voyerr"
)

var tempCounter uint64

func tempPathFor(path string) string {
	n := atomic.AddUint64(&tempCounter, 1)
	base := filepath.Base(path)
	if base == "" || base == "." {
		base = "voyager"
	}
	tempName := fmt.Sprintf("%s.%d.%d.tmp", base, os.Getpid(), n)
	return filepath.Join(filepath.Dir(path), tempName)
}

func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

func syncParentDir(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	dir := parentDir(path)
	if dir == "" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// Write writes content to path atomically: it writes to a sibling temp
// file, fsyncs it, renames it over path, then fsyncs the parent directory.
func Write(path string, content []byte) error {
	dir := parentDir(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	temp := tempPathFor(path)
	f, err := os.Create(temp)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(temp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(temp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(temp)
		return err
	}

	if runtime.GOOS == "windows" {
		if _, err := os.Stat(path); err == nil {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}

	if err := os.Rename(temp, path); err != nil {
		return err
	}

	return syncParentDir(path)
}

// RemoveIfExists deletes path if it exists, syncing the parent directory
// afterward. It is a no-op if path does not exist.
func RemoveIfExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	return syncParentDir(path)
}

// ReadIfExists reads path's contents, returning (nil, nil) if it does
// not exist.
func ReadIfExists(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return content, nil
}

// ReadJSON reads path and decodes it as JSON into v.
func ReadJSON(path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return voyerr.FileRead(path, err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return voyerr.JsonParse(path, err)
	}
	return nil
}

// WriteJSON encodes v as pretty-printed JSON and writes it atomically to path.
func WriteJSON(path string, v any) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return voyerr.JsonSerialize(err)
	}
	if err := Write(path, content); err != nil {
		return voyerr.OutputWrite(path, err)
	}
	return nil
}

// Package txn implements the crash-safe two-file commit protocol used
// to save the manifest and lockfile together: either both land with
// their new contents, or both are rolled back to what they held before.
package txn

import (
	"encoding/json"
	"strings"

	"github.com/voyager-vpm/voyager/internal/atomicfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

type record struct {
	OldManifest *string `json:"old_manifest"`
	OldLock     *string `json:"old_lock"`
	NewManifest string  `json:"new_manifest"`
	NewLock     string  `json:"new_lock"`
}

func transactionPath(configPath string) string {
	if idx := strings.LastIndex(configPath, "."); idx >= 0 {
		return configPath[:idx] + ".txn"
	}
	return configPath + ".txn"
}

func writeAtomic(path string, content []byte) error {
	if err := atomicfile.Write(path, content); err != nil {
		return voyerr.FileWrite(path, err)
	}
	return nil
}

func readOptional(path string) (*string, error) {
	content, err := atomicfile.ReadIfExists(path)
	if err != nil {
		return nil, voyerr.FileRead(path, err)
	}
	if content == nil {
		return nil, nil
	}
	s := string(content)
	return &s, nil
}

func writeTransactionLog(configPath string, rec *record) error {
	content, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return voyerr.JsonSerialize(err)
	}
	return writeAtomic(transactionPath(configPath), content)
}

func loadTransactionLog(configPath string) (*record, error) {
	txPath := transactionPath(configPath)
	content, err := readOptional(txPath)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal([]byte(*content), &rec); err != nil {
		return nil, voyerr.JsonParse(txPath, err)
	}
	return &rec, nil
}

func equalOptional(current, old *string) bool {
	if current == nil && old == nil {
		return true
	}
	if current == nil || old == nil {
		return false
	}
	return *current == *old
}

func equalToNew(current *string, newContent string) bool {
	return current != nil && *current == newContent
}

// Recover finalizes or rolls back any interrupted manifest+lock
// transaction found at configPath/lockPath. It is always safe to call,
// including when no transaction log exists.
func Recover(configPath, lockPath string) error {
	rec, err := loadTransactionLog(configPath)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	currentManifest, err := readOptional(configPath)
	if err != nil {
		return err
	}
	currentLock, err := readOptional(lockPath)
	if err != nil {
		return err
	}

	manifestIsOld := equalOptional(currentManifest, rec.OldManifest)
	manifestIsNew := equalToNew(currentManifest, rec.NewManifest)
	lockIsOld := equalOptional(currentLock, rec.OldLock)
	lockIsNew := equalToNew(currentLock, rec.NewLock)

	if manifestIsNew && lockIsNew {
		return removeIfExists(transactionPath(configPath))
	}

	if manifestIsOld && lockIsOld {
		return removeIfExists(transactionPath(configPath))
	}

	if manifestIsNew && lockIsOld {
		if err := restore(configPath, rec.OldManifest); err != nil {
			return err
		}
		if err := restore(lockPath, rec.OldLock); err != nil {
			return err
		}
		return removeIfExists(transactionPath(configPath))
	}

	return voyerr.ConfigValidation(
		"found unresolved manifest/lock transaction %q, but current files do not match a recoverable state. Please inspect files and remove the transaction file manually.",
		transactionPath(configPath))
}

func restore(path string, content *string) error {
	if content != nil {
		return writeAtomic(path, []byte(*content))
	}
	return removeIfExists(path)
}

func removeIfExists(path string) error {
	if err := atomicfile.RemoveIfExists(path); err != nil {
		return voyerr.FileWrite(path, err)
	}
	return nil
}

// SaveManifestAndLock persists m and lf as a crash-recoverable
// transaction: a transaction log is written first, then both files are
// written in order. If the process dies mid-write, the next call to
// Recover (or to SaveManifestAndLock, which recovers first) restores a
// consistent state.
func SaveManifestAndLock(m *manifest.Manifest, lf *lockfile.Lockfile, configPath, lockPath string) error {
	if err := Recover(configPath, lockPath); err != nil {
		return err
	}

	oldManifest, err := readOptional(configPath)
	if err != nil {
		return err
	}
	oldLock, err := readOptional(lockPath)
	if err != nil {
		return err
	}

	newManifest, err := manifest.Canonicalize(m)
	if err != nil {
		return voyerr.TomlSerialize(configPath, err)
	}
	newLockBytes, err := lockfile.Canonicalize(lf)
	if err != nil {
		return voyerr.TomlSerialize(lockPath, err)
	}

	rec := &record{
		OldManifest: oldManifest,
		OldLock:     oldLock,
		NewManifest: string(newManifest),
		NewLock:     string(newLockBytes),
	}

	if err := writeTransactionLog(configPath, rec); err != nil {
		return err
	}

	writeErr := func() error {
		if err := writeAtomic(configPath, []byte(rec.NewManifest)); err != nil {
			return err
		}
		return writeAtomic(lockPath, []byte(rec.NewLock))
	}()

	if writeErr != nil {
		_ = Recover(configPath, lockPath)
		return writeErr
	}

	return removeIfExists(transactionPath(configPath))
}

// Package gate implements voyager's manifest-integrity gate: every
// command that reads the manifest alongside the lockfile must agree
// that the manifest on disk still matches the hash the lockfile was
// last saved against.
package gate

import (
	"context"

	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/txn"
	"github.com/voyager-vpm/voyager/internal/upstream"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// Loaded is the result of a gated load: the manifest, its matching
// lockfile, and the manifest's current content hash.
type Loaded struct {
	Manifest     *manifest.Manifest
	Lockfile     *lockfile.Lockfile
	ManifestHash string
}

// Load reads the manifest and lockfile at configPath/lockPath and
// verifies the lockfile's recorded manifest_hash still matches the
// manifest's current content. A lockfile with no recorded hash (e.g.
// one that has never been locked) passes the gate unconditionally. On a
// hash mismatch the loaded data is returned alongside the
// ManifestHashMismatch error.
func Load(configPath, lockPath string) (Loaded, error) {
	if err := txn.Recover(configPath, lockPath); err != nil {
		return Loaded{}, err
	}

	m, err := manifest.Load(configPath)
	if err != nil {
		return Loaded{}, err
	}

	lf, err := lockfile.LoadOrDefault(lockPath)
	if err != nil {
		return Loaded{}, err
	}

	hash, err := manifest.ComputeHash(m)
	if err != nil {
		return Loaded{}, voyerr.TomlSerialize(configPath, err)
	}

	if lf.ManifestHash != "" && lf.ManifestHash != hash {
		return Loaded{Manifest: m, Lockfile: lf, ManifestHash: hash}, voyerr.ManifestHashMismatch()
	}

	return Loaded{Manifest: m, Lockfile: lf, ManifestHash: hash}, nil
}

// Refresh recomputes the manifest's hash and writes it into the
// lockfile. When check is true it only observes: it reports a mismatch
// without touching either file. Otherwise it re-verifies every
// manifest package's upstream repository is reachable before
// recomputing the hash a second time, failing if the manifest changed
// on disk while verification was in flight, and only then persists.
func Refresh(ctx context.Context, configPath, lockPath string, github upstream.Client, check bool) error {
	loaded, err := Load(configPath, lockPath)
	if err != nil && (check || !voyerr.IsManifestHashMismatch(err)) {
		return err
	}

	if check {
		return nil
	}

	for _, pkg := range loaded.Manifest.Packages {
		if err := github.VerifyRepository(ctx, pkg.Repository); err != nil {
			return err
		}
	}

	current, err := manifest.Load(configPath)
	if err != nil {
		return err
	}
	refreshedHash, err := manifest.ComputeHash(current)
	if err != nil {
		return voyerr.TomlSerialize(configPath, err)
	}
	if refreshedHash != loaded.ManifestHash {
		return voyerr.ManifestHashMismatch()
	}

	loaded.Lockfile.ManifestHash = refreshedHash
	return loaded.Lockfile.Save(lockPath)
}

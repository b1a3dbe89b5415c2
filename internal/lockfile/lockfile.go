// Package lockfile implements the machine-maintained voyager.lock: the
// locked set of fetched package versions and their raw metadata.
package lockfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/voyager-vpm/voyager/internal/atomicfile"
	"github.com/voyager-vpm/voyager/internal/repository"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

const (
	// Version is the lockfile schema version voyager writes.
	Version = 1
	minSupportedVersion = 1
	maxSupportedVersion = 1
)

// Lockfile is the machine-maintained voyager.lock: the resolved,
// hash-verified state of every locked package's fetched versions.
type Lockfile struct {
	Version      int             `toml:"version"`
	ManifestHash string          `toml:"manifest_hash,omitempty"`
	Packages     []LockedPackage `toml:"packages,omitempty"`
}

// LockedPackage is the locked state of one manifest package entry.
type LockedPackage struct {
	Id         string                `toml:"id"`
	Repository repository.Repository `toml:"repository"`
	Versions   []LockedVersion       `toml:"versions,omitempty"`
}

// LockedVersion is one fetched, validated release of a package.
type LockedVersion struct {
	Version  string          `toml:"version"`
	Tag      string          `toml:"tag"`
	Url      string          `toml:"url"`
	Hash     string          `toml:"hash"`
	Manifest PackageManifest `toml:"manifest"`
}

// NewLockedVersion builds a LockedVersion, hashing rawContent to produce
// the integrity value stored alongside it.
func NewLockedVersion(tag, url, rawContent string, manifest PackageManifest) LockedVersion {
	return LockedVersion{
		Version:  manifest.Version,
		Tag:      tag,
		Url:      url,
		Hash:     ComputeHash(rawContent),
		Manifest: manifest,
	}
}

// PackageManifest is the normalized package.json data persisted in
// voyager.lock, independent of the projected index's output schema.
type PackageManifest struct {
	Name            string            `toml:"name"`
	Version         string            `toml:"version"`
	DisplayName     string            `toml:"display_name"`
	Description     string            `toml:"description"`
	Unity           string            `toml:"unity"`
	UnityRelease    string            `toml:"unity_release,omitempty"`
	Dependencies    map[string]string `toml:"dependencies,omitempty"`
	Keywords        []string          `toml:"keywords,omitempty"`
	Author          PackageAuthor     `toml:"author"`
	VpmDependencies map[string]string `toml:"vpm_dependencies,omitempty"`
	Url             string            `toml:"url"`
	License         string            `toml:"license,omitempty"`
	ZipSha256       string            `toml:"zip_sha256,omitempty"`

	// Extra holds every top-level field of the raw package.json document
	// that isn't one of the fields above, keyed by its original camelCase
	// name, so it can be round-tripped verbatim into the generated index.
	Extra map[string]interface{} `toml:"extra,omitempty"`
}

// knownPackageManifestKeys are the package.json field names (lowercased)
// already captured by a named PackageManifest field; everything else
// falls into Extra.
var knownPackageManifestKeys = map[string]bool{
	"name": true, "version": true, "displayname": true, "description": true,
	"unity": true, "unityrelease": true, "dependencies": true, "keywords": true,
	"author": true, "vpmdependencies": true, "url": true, "license": true,
	"zipsha256": true,
}

// ParsePackageManifest decodes a raw package.json document into a
// PackageManifest, capturing every field not already modeled by a named
// struct field into Extra.
func ParsePackageManifest(raw []byte) (PackageManifest, error) {
	var pm PackageManifest
	if err := json.Unmarshal(raw, &pm); err != nil {
		return PackageManifest{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return PackageManifest{}, err
	}

	for key, value := range fields {
		if knownPackageManifestKeys[strings.ToLower(key)] {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			continue
		}
		if pm.Extra == nil {
			pm.Extra = make(map[string]interface{})
		}
		pm.Extra[key] = decoded
	}

	return pm, nil
}

// PackageAuthor is a package.json "author" object.
type PackageAuthor struct {
	Name  string `toml:"name"`
	Email string `toml:"email,omitempty"`
	Url   string `toml:"url,omitempty"`
}

// New returns an empty lockfile at the current schema version.
func New() *Lockfile {
	return &Lockfile{Version: Version}
}

// Load reads a lockfile from path, rejecting versions outside the
// supported range.
func Load(path string) (*Lockfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, voyerr.FileRead(path, err)
	}

	var lf Lockfile
	if _, err := toml.Decode(string(content), &lf); err != nil {
		return nil, voyerr.TomlParse(path, err)
	}

	if lf.Version < minSupportedVersion {
		return nil, voyerr.ConfigValidation(
			"lockfile version %d is too old (minimum supported: %d). Please delete the lockfile and run 'voy fetch' again.",
			lf.Version, minSupportedVersion)
	}
	if lf.Version > maxSupportedVersion {
		return nil, voyerr.ConfigValidation(
			"lockfile version %d is newer than supported (maximum: %d). Please upgrade voyager to read this lockfile.",
			lf.Version, maxSupportedVersion)
	}
	lf.Version = Version

	return &lf, nil
}

// LoadOrDefault loads path if it exists, or returns an empty lockfile.
func LoadOrDefault(path string) (*Lockfile, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, voyerr.FileRead(path, err)
	}
	return Load(path)
}

// Canonicalize serializes lf using pretty TOML formatting, since the
// lockfile is meant to be diffed in version control. This is the single
// serializer used both for on-disk saves and the transactional writer.
func Canonicalize(lf *Lockfile) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = "  "
	if err := enc.Encode(lf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the lockfile atomically to path.
func (lf *Lockfile) Save(path string) error {
	content, err := Canonicalize(lf)
	if err != nil {
		return voyerr.TomlSerialize(path, err)
	}
	if err := atomicfile.Write(path, content); err != nil {
		return voyerr.FileWrite(path, err)
	}
	return nil
}

// GetPackage returns the locked package with the given id, if present.
func (lf *Lockfile) GetPackage(id string) *LockedPackage {
	for i := range lf.Packages {
		if lf.Packages[i].Id == id {
			return &lf.Packages[i]
		}
	}
	return nil
}

// GetOrInsertPackage returns the locked package with the given id,
// inserting an empty one if it is not already present.
func (lf *Lockfile) GetOrInsertPackage(id string, repo repository.Repository) *LockedPackage {
	if pkg := lf.GetPackage(id); pkg != nil {
		return pkg
	}
	lf.Packages = append(lf.Packages, LockedPackage{Id: id, Repository: repo})
	return &lf.Packages[len(lf.Packages)-1]
}

// ExistingVersions returns the set of version strings already locked
// for this package.
func (p *LockedPackage) ExistingVersions() map[string]bool {
	versions := make(map[string]bool, len(p.Versions))
	for _, v := range p.Versions {
		versions[v.Version] = true
	}
	return versions
}

// GetVersion returns the locked version matching version, if present.
func (p *LockedPackage) GetVersion(version string) *LockedVersion {
	for i := range p.Versions {
		if p.Versions[i].Version == version {
			return &p.Versions[i]
		}
	}
	return nil
}

// ComputeHash hashes raw content, producing the "sha256:<hex>" value
// stored as a LockedVersion's integrity hash.
func ComputeHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("sha256:%x", sum)
}

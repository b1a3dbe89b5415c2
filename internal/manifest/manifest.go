// Package manifest implements the hand-edited voyager.toml manifest:
// its schema, loading/validation, and canonical serialization used both
// for persistence and for the manifest-integrity hash.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/voyager-vpm/voyager/internal/repository"
	"github.com/voyager-vpm/voyager/internal/validate"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// Manifest is the hand-edited voyager.toml: the VPM's own identity plus
// the list of packages it curates.
type Manifest struct {
	Vpm      Vpm       `toml:"vpm"`
	Packages []Package `toml:"packages,omitempty"`
}

// Vpm describes the package listing's own identity, as published in the
// generated index.
type Vpm struct {
	Id     string `toml:"id"`
	Name   string `toml:"name"`
	Author string `toml:"author"`
	Url    string `toml:"url"`
}

// Package is one curated package entry: its id and the GitHub repository
// voyager fetches releases from.
type Package struct {
	Id         string                `toml:"id"`
	Repository repository.Repository `toml:"repository"`
}

// New builds an empty manifest around the given VPM identity.
func New(vpm Vpm) *Manifest {
	return &Manifest{Vpm: vpm}
}

// Load reads and validates a manifest from path.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, voyerr.FileRead(path, err)
	}

	var m Manifest
	if _, err := toml.Decode(string(content), &m); err != nil {
		return nil, voyerr.TomlParse(path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Save writes the manifest to path using the canonical (non-pretty)
// TOML encoding.
func (m *Manifest) Save(path string) error {
	content, err := Canonicalize(m)
	if err != nil {
		return voyerr.TomlSerialize(path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return voyerr.FileWrite(path, err)
	}
	return nil
}

// Canonicalize serializes m using a single, fixed TOML encoder
// configuration. The manifest-integrity hash and the on-disk save path
// both go through this function so they can never disagree about what
// "the manifest's bytes" means.
func Canonicalize(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ComputeHash hashes the canonical serialization of m, producing the
// "sha256:<hex>" value stored as the lockfile's manifest_hash.
func ComputeHash(m *Manifest) (string, error) {
	canonical, err := Canonicalize(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("sha256:%x", sum), nil
}

// Validate checks the VPM identity and every package entry, including
// reverse-domain formatting, prefix consistency, and duplicate ids.
func (m *Manifest) Validate() error {
	if err := m.Vpm.validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(m.Packages))
	for _, pkg := range m.Packages {
		if err := pkg.validate(); err != nil {
			return err
		}
		if err := validate.PackageIdPrefix(pkg.Id, m.Vpm.Id); err != nil {
			return err
		}
		if seen[pkg.Id] {
			return voyerr.ConfigValidation("duplicate package ID: %s", pkg.Id)
		}
		seen[pkg.Id] = true
	}

	return nil
}

func (v Vpm) validate() error {
	if v.Id == "" {
		return voyerr.ConfigValidation("VPM id is empty")
	}
	if err := validate.ReverseDomain(v.Id); err != nil {
		return err
	}
	if v.Name == "" {
		return voyerr.ConfigValidation("VPM name is empty")
	}
	if v.Author == "" {
		return voyerr.ConfigValidation("VPM author is empty")
	}
	return validate.URL(v.Url)
}

func (p Package) validate() error {
	if p.Id == "" {
		return voyerr.ConfigValidation("package id is empty")
	}
	return validate.ReverseDomain(p.Id)
}

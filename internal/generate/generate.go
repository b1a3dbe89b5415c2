// Package generate projects a manifest and lockfile into the published
// VPM index.
package generate

import (
	"encoding/json"

	"github.com/iancoleman/orderedmap"

	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// VpmOutput is the published VPM index document.
type VpmOutput struct {
	Name     string
	Id       string
	Url      string
	Author   string
	Packages *orderedmap.OrderedMap
}

// PackageOutput is one package's entry in the published index.
type PackageOutput struct {
	Versions *orderedmap.OrderedMap
}

// VersionOutput is one version's entry in the published index, matching
// the VPM package.json schema with camelCase field names.
type VersionOutput struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	DisplayName     string            `json:"displayName"`
	Description     string            `json:"description,omitempty"`
	Unity           string            `json:"unity,omitempty"`
	UnityRelease    string            `json:"unityRelease,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	Author          Author            `json:"author"`
	VpmDependencies map[string]string `json:"vpmDependencies,omitempty"`
	Url             string            `json:"url"`
	License         string            `json:"license,omitempty"`
	ZipSha256       string            `json:"zipSHA256,omitempty"`

	// Extra carries every package.json field this type doesn't model by
	// name, so the published index round-trips unrecognized fields
	// instead of silently dropping them.
	Extra map[string]interface{} `json:"-"`
}

// MarshalJSON serializes the modeled fields and flattens Extra's entries
// alongside them, so unrecognized package.json fields round-trip into
// the published index unchanged.
func (v VersionOutput) MarshalJSON() ([]byte, error) {
	type alias VersionOutput
	base, err := json.Marshal(alias(v))
	if err != nil {
		return nil, err
	}
	if len(v.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range v.Extra {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = encoded
	}
	return json.Marshal(merged)
}

// Author is a published version's "author" object.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Url   string `json:"url,omitempty"`
}

// MarshalJSON serializes the index with "packages" and each package's
// "versions" in their manifest/lockfile insertion order, matching the
// order VPM clients expect an index to be browsed in.
func (v VpmOutput) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name     string                 `json:"name"`
		Id       string                 `json:"id"`
		Url      string                 `json:"url"`
		Author   string                 `json:"author"`
		Packages *orderedmap.OrderedMap `json:"packages"`
	}
	return json.Marshal(alias{v.Name, v.Id, v.Url, v.Author, v.Packages})
}

// MarshalJSON serializes a package as an object whose single "versions"
// key holds its versions map, in insertion order.
func (p PackageOutput) MarshalJSON() ([]byte, error) {
	type alias struct {
		Versions *orderedmap.OrderedMap `json:"versions"`
	}
	return json.Marshal(alias{p.Versions})
}

// FromManifest builds the index skeleton from m: VPM identity plus one
// empty package entry per manifest package, in manifest order.
func FromManifest(m *manifest.Manifest) VpmOutput {
	packages := orderedmap.New()
	for _, pkg := range m.Packages {
		packages.Set(pkg.Id, &PackageOutput{Versions: orderedmap.New()})
	}

	return VpmOutput{
		Name:     m.Vpm.Name,
		Id:       m.Vpm.Id,
		Url:      m.Vpm.Url,
		Author:   m.Vpm.Author,
		Packages: packages,
	}
}

// CollectUrls returns every (packageId, version, url) triple across the
// index, used to drive URL liveness validation.
func (v VpmOutput) CollectUrls() []URLEntry {
	var out []URLEntry
	for _, packageID := range v.Packages.Keys() {
		raw, _ := v.Packages.Get(packageID)
		pkg, ok := raw.(*PackageOutput)
		if !ok {
			continue
		}
		for _, version := range pkg.Versions.Keys() {
			raw, _ := pkg.Versions.Get(version)
			vo, ok := raw.(VersionOutput)
			if !ok {
				continue
			}
			out = append(out, URLEntry{PackageID: packageID, Version: version, Url: vo.Url})
		}
	}
	return out
}

// URLEntry is one published version's download URL, tagged with the
// package and version it belongs to.
type URLEntry struct {
	PackageID string
	Version   string
	Url       string
}

// Project transforms manifest m and its locked package data in lf
// into the VPM index format published for clients to consume.
func Project(m *manifest.Manifest, lf *lockfile.Lockfile) (VpmOutput, error) {
	output := FromManifest(m)

	for _, pkg := range m.Packages {
		locked := lf.GetPackage(pkg.Id)
		if locked == nil {
			return VpmOutput{}, voyerr.ConfigValidation(
				"lockfile missing package %q; run 'voy fetch' first", pkg.Id)
		}

		versions := orderedmap.New()
		for _, lv := range locked.Versions {
			versions.Set(lv.Version, toOutputVersion(lv.Manifest))
		}

		raw, _ := output.Packages.Get(pkg.Id)
		po := raw.(*PackageOutput)
		po.Versions = versions
	}

	return output, nil
}

func toOutputVersion(pm lockfile.PackageManifest) VersionOutput {
	return VersionOutput{
		Name:         pm.Name,
		Version:      pm.Version,
		DisplayName:  pm.DisplayName,
		Description:  pm.Description,
		Unity:        pm.Unity,
		UnityRelease: pm.UnityRelease,
		Dependencies: pm.Dependencies,
		Keywords:     pm.Keywords,
		Author: Author{
			Name:  pm.Author.Name,
			Email: pm.Author.Email,
			Url:   pm.Author.Url,
		},
		VpmDependencies: pm.VpmDependencies,
		Url:             pm.Url,
		License:         pm.License,
		ZipSha256:       pm.ZipSha256,
		Extra:           pm.Extra,
	}
}

// Package listing implements voyager's read-only "list" and "info"
// projections: manifest/lockfile inspection views with no gate check
// and no mutation.
package listing

import (
	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// PackageSummary is one manifest package's "voy list" row.
type PackageSummary struct {
	Id                 string
	Repository         string
	LockedVersionCount int
	NewestTag          string
}

// List summarizes every manifest package in manifest order. lf may be
// nil, empty, or stale relative to m: packages with no matching locked
// entry simply report zero locked versions.
func List(m *manifest.Manifest, lf *lockfile.Lockfile) []PackageSummary {
	summaries := make([]PackageSummary, 0, len(m.Packages))
	for _, pkg := range m.Packages {
		summary := PackageSummary{Id: pkg.Id, Repository: pkg.Repository.String()}
		if lf != nil {
			if locked := lf.GetPackage(pkg.Id); locked != nil {
				summary.LockedVersionCount = len(locked.Versions)
				if len(locked.Versions) > 0 {
					summary.NewestTag = locked.Versions[0].Tag
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// VersionDetail is one locked version's "voy info" row.
type VersionDetail struct {
	Version string
	Tag     string
	Url     string
}

// PackageDetail is a single package's full "voy info" detail.
type PackageDetail struct {
	Id         string
	Repository string
	Versions   []VersionDetail
}

// Info builds the full detail view for packageID, newest version
// first. It returns a configuration error if packageID isn't in the
// manifest.
func Info(m *manifest.Manifest, lf *lockfile.Lockfile, packageID string) (PackageDetail, error) {
	var pkg *manifest.Package
	for i := range m.Packages {
		if m.Packages[i].Id == packageID {
			pkg = &m.Packages[i]
			break
		}
	}
	if pkg == nil {
		return PackageDetail{}, voyerr.ConfigValidation("unknown package %q", packageID)
	}

	detail := PackageDetail{Id: pkg.Id, Repository: pkg.Repository.String()}
	if lf == nil {
		return detail, nil
	}

	locked := lf.GetPackage(pkg.Id)
	if locked == nil {
		return detail, nil
	}

	for _, v := range locked.Versions {
		detail.Versions = append(detail.Versions, VersionDetail{Version: v.Version, Tag: v.Tag, Url: v.Url})
	}
	return detail, nil
}

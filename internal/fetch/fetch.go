// Package fetch implements voyager's fetch pipeline: reconciling the
// lockfile against the manifest, then fetching and validating each
// package's new releases with bounded concurrency.
package fetch

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/release"
	"github.com/voyager-vpm/voyager/internal/upstream"
	"github.com/voyager-vpm/voyager/internal/validate"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// ProgressReporter receives fetch progress notifications. Every method
// must be safe to call concurrently.
type ProgressReporter interface {
	OnFetchingReleases(packageID string)
	OnDownloading(packageID string, versionCount int)
	OnDone(packageID string, existing, new int)
}

// Config configures a Pipeline.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	AssetName     string
}

// Pipeline runs voyager's fetch pipeline against a GitHub capability.
type Pipeline struct {
	github upstream.Client
	config Config
	log    hclog.Logger
}

// New builds a Pipeline.
func New(github upstream.Client, config Config, log hclog.Logger) *Pipeline {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Pipeline{github: github, config: config, log: log}
}

type packageFetchResult struct {
	packageID     string
	versions      []lockfile.LockedVersion
	existingCount int
	newCount      int
	failedCount   int
}

// Fetch reconciles lf against m, then fetches and validates every
// package's new releases concurrently. A hard error (e.g. the GitHub
// API being unreachable) aborts the whole operation; per-release
// failures are counted and reported as voyerr.FetchPartialFailure only
// after every package has finished.
func (f *Pipeline) Fetch(ctx context.Context, m *manifest.Manifest, lf *lockfile.Lockfile, progress ProgressReporter) error {
	ReconcileLockfile(m, lf)

	if len(m.Packages) == 0 {
		f.log.Info("no packages configured; skipping fetch")
		return nil
	}

	packageConcurrency := clamp(f.config.MaxConcurrent, 1, len(m.Packages))
	downloadConcurrency := max(f.config.MaxConcurrent/packageConcurrency, 1)

	existing := make(map[string]lockfile.LockedPackage, len(lf.Packages))
	for _, pkg := range lf.Packages {
		existing[pkg.Id] = pkg
	}

	results := make([]packageFetchResult, len(m.Packages))
	errs := make([]error, len(m.Packages))

	// A plain (non context-cancelling) errgroup bounds concurrency to
	// packageConcurrency without aborting sibling packages on a hard
	// error from one of them; every package always runs to completion
	// so their errors can be aggregated below.
	var g errgroup.Group
	g.SetLimit(packageConcurrency)

	for i, pkg := range m.Packages {
		i, pkg := i, pkg
		existingPkg, ok := existing[pkg.Id]
		if !ok {
			existingPkg = lockfile.LockedPackage{Id: pkg.Id, Repository: pkg.Repository}
		}

		g.Go(func() error {
			result, err := f.fetchPackage(ctx, pkg, existingPkg, downloadConcurrency, progress)
			results[i] = result
			errs[i] = err
			return nil
		})
	}
	g.Wait()

	var hardErrors *multierror.Error
	for _, err := range errs {
		if err != nil {
			hardErrors = multierror.Append(hardErrors, err)
		}
	}
	if hardErrors.ErrorOrNil() != nil {
		return hardErrors.ErrorOrNil()
	}

	totalFailed := 0
	for _, result := range results {
		locked := lf.GetPackage(result.packageID)
		if locked == nil {
			return voyerr.ConfigValidation("lockfile missing package %q after reconciliation", result.packageID)
		}
		locked.Versions = result.versions
		if progress != nil {
			progress.OnDone(locked.Id, result.existingCount, result.newCount)
		}
		totalFailed += result.failedCount
		f.log.Info("package fetch completed",
			"package_id", locked.Id,
			"total_versions", len(locked.Versions),
			"new_versions", result.newCount,
			"failed_versions", result.failedCount,
		)
	}

	if totalFailed > 0 {
		return voyerr.FetchPartialFailure(totalFailed)
	}

	f.log.Info("fetch completed", "package_concurrency", packageConcurrency, "download_concurrency", downloadConcurrency)
	return nil
}

// ReconcileLockfile syncs lf with m: removing stale packages, inserting
// new ones, clearing versions when a package's repository changes, and
// reordering locked packages to match the manifest's order.
func ReconcileLockfile(m *manifest.Manifest, lf *lockfile.Lockfile) {
	order := make(map[string]int, len(m.Packages))
	for i, pkg := range m.Packages {
		order[pkg.Id] = i
	}

	kept := lf.Packages[:0]
	for _, pkg := range lf.Packages {
		if _, ok := order[pkg.Id]; ok {
			kept = append(kept, pkg)
		}
	}
	lf.Packages = kept

	for _, pkg := range m.Packages {
		locked := lf.GetOrInsertPackage(pkg.Id, pkg.Repository)
		if locked.Repository != pkg.Repository {
			locked.Repository = pkg.Repository
			locked.Versions = nil
		}
	}

	sortByManifestOrder(lf.Packages, order)
}

func sortByManifestOrder(packages []lockfile.LockedPackage, order map[string]int) {
	index := func(id string) int {
		if i, ok := order[id]; ok {
			return i
		}
		return len(order)
	}
	for i := 1; i < len(packages); i++ {
		for j := i; j > 0 && index(packages[j].Id) < index(packages[j-1].Id); j-- {
			packages[j], packages[j-1] = packages[j-1], packages[j]
		}
	}
}

func (f *Pipeline) fetchPackage(ctx context.Context, pkg manifest.Package, existingPkg lockfile.LockedPackage, downloadConcurrency int, progress ProgressReporter) (packageFetchResult, error) {
	if progress != nil {
		progress.OnFetchingReleases(pkg.Id)
	}

	existingVersions := existingPkg.ExistingVersions()
	existingCount := len(existingVersions)

	releases, err := f.github.ListReleases(ctx, pkg.Repository, f.config.AssetName)
	if err != nil {
		return packageFetchResult{}, err
	}

	newReleases := release.FilterNew(releases, existingVersions)

	var fetchedVersions []lockfile.LockedVersion
	failedCount := 0

	if len(newReleases) > 0 {
		if progress != nil {
			progress.OnDownloading(pkg.Id, len(newReleases))
		}

		downloads, err := f.github.DownloadAssets(ctx, newReleases, downloadConcurrency, f.config.MaxRetries)
		if err != nil {
			return packageFetchResult{}, err
		}

		for _, dl := range downloads {
			if dl.Err != nil {
				failedCount++
				f.log.Warn("failed to fetch package.json", "version", dl.Release.Version(), "error", dl.Err)
				continue
			}

			pm, err := lockfile.ParsePackageManifest([]byte(dl.Content))
			if err != nil {
				failedCount++
				f.log.Warn("failed to parse package.json", "version", dl.Release.Version(), "error", err)
				continue
			}

			if err := ValidatePackageManifest(pkg, dl.Release, pm); err != nil {
				failedCount++
				f.log.Warn("rejected package.json with invalid metadata", "version", dl.Release.Version(), "error", err)
				continue
			}

			assetURL, _ := dl.Release.AssetURL()
			fetchedVersions = append(fetchedVersions, lockfile.NewLockedVersion(dl.Release.Tag(), assetURL, dl.Content, pm))
		}
	}

	releaseOrder := make([]string, 0, len(releases))
	for _, r := range releases {
		if _, ok := r.AssetURL(); ok {
			releaseOrder = append(releaseOrder, r.Version())
		}
	}

	var allVersions []lockfile.LockedVersion
	if len(releaseOrder) == 0 {
		if len(existingPkg.Versions) > 0 {
			f.log.Warn("no releases with matching assets found; keeping existing locked versions", "package_id", pkg.Id)
		}
		allVersions = existingPkg.Versions
	} else {
		for _, version := range releaseOrder {
			if pos := indexOfVersion(fetchedVersions, version); pos >= 0 {
				allVersions = append(allVersions, fetchedVersions[pos])
				fetchedVersions = append(fetchedVersions[:pos], fetchedVersions[pos+1:]...)
			} else if existing := existingPkg.GetVersion(version); existing != nil {
				allVersions = append(allVersions, *existing)
			}
		}

		seen := make(map[string]bool, len(allVersions))
		for _, v := range allVersions {
			seen[v.Version] = true
		}
		for _, existing := range existingPkg.Versions {
			if !seen[existing.Version] {
				seen[existing.Version] = true
				allVersions = append(allVersions, existing)
			}
		}
	}

	newCount := 0
	for _, v := range allVersions {
		if !existingVersions[v.Version] {
			newCount++
		}
	}

	return packageFetchResult{
		packageID:     pkg.Id,
		versions:      allVersions,
		existingCount: existingCount,
		newCount:      newCount,
		failedCount:   failedCount,
	}, nil
}

func indexOfVersion(versions []lockfile.LockedVersion, version string) int {
	for i, v := range versions {
		if v.Version == version {
			return i
		}
	}
	return -1
}

// ValidatePackageManifest checks a fetched package.json against the
// manifest entry and release it was fetched for.
func ValidatePackageManifest(pkg manifest.Package, r release.Release, pm lockfile.PackageManifest) error {
	if pm.Name != pkg.Id {
		return voyerr.ConfigValidation(
			"package.json name %q does not match package id %q (release %q)", pm.Name, pkg.Id, r.Tag())
	}

	expectedVersion := r.Version()
	if pm.Version != expectedVersion {
		return voyerr.ConfigValidation(
			"package.json version %q does not match release tag %q (expected %q) for package %q",
			pm.Version, r.Tag(), expectedVersion, pkg.Id)
	}

	if _, err := semver.StrictNewVersion(pm.Version); err != nil {
		return voyerr.ConfigValidation(
			"package.json version %q is not valid SemVer for package %q (release %q)", pm.Version, pkg.Id, r.Tag())
	}

	if strings.TrimSpace(pm.DisplayName) == "" {
		return voyerr.ConfigValidation(
			"package.json is missing required field 'displayName' for package %q (release %q)", pkg.Id, r.Tag())
	}

	if strings.TrimSpace(pm.Author.Name) == "" {
		return voyerr.ConfigValidation(
			"package.json is missing required field 'author.name' for package %q (release %q)", pkg.Id, r.Tag())
	}

	if strings.TrimSpace(pm.Author.Email) == "" {
		return voyerr.ConfigValidation(
			"package.json is missing required field 'author.email' for package %q (release %q)", pkg.Id, r.Tag())
	}

	if strings.TrimSpace(pm.Unity) == "" {
		if strings.TrimSpace(pm.UnityRelease) != "" {
			return voyerr.ConfigValidation(
				"package.json field 'unityRelease' requires field 'unity' for package %q (release %q)", pkg.Id, r.Tag())
		}
	} else if err := validate.UnityVersion(pm.Unity); err != nil {
		return voyerr.ConfigValidation(
			"package.json field 'unity' is invalid for package %q (release %q): %s", pkg.Id, r.Tag(), err)
	}

	if strings.TrimSpace(pm.UnityRelease) != "" {
		if err := validate.UnityRelease(pm.UnityRelease); err != nil {
			return voyerr.ConfigValidation(
				"package.json field 'unityRelease' is invalid for package %q (release %q): %s", pkg.Id, r.Tag(), err)
		}
	}

	if strings.TrimSpace(pm.Url) == "" {
		return voyerr.ConfigValidation(
			"package.json is missing required field 'url' for package %q (release %q)", pkg.Id, r.Tag())
	}
	if err := validate.ZipURL(pm.Url); err != nil {
		return voyerr.ConfigValidation(
			"package.json field 'url' is invalid for package %q (release %q): %s", pkg.Id, r.Tag(), err)
	}

	for name, version := range pm.Dependencies {
		if err := validate.ReverseDomain(name); err != nil {
			return voyerr.ConfigValidation(
				"package.json field 'dependencies' has invalid package name %q for package %q (release %q): %s", name, pkg.Id, r.Tag(), err)
		}
		if err := validate.UnityDependencyVersion(version); err != nil {
			return voyerr.ConfigValidation(
				"package.json field 'dependencies' has invalid version %q for dependency %q in package %q (release %q): %s",
				version, name, pkg.Id, r.Tag(), err)
		}
	}

	for name, rng := range pm.VpmDependencies {
		if err := validate.ReverseDomain(name); err != nil {
			return voyerr.ConfigValidation(
				"package.json field 'vpmDependencies' has invalid package name %q for package %q (release %q): %s", name, pkg.Id, r.Tag(), err)
		}
		if err := validate.VpmDependencyRange(rng); err != nil {
			return voyerr.ConfigValidation(
				"package.json field 'vpmDependencies' has invalid range %q for dependency %q in package %q (release %q): %s",
				rng, name, pkg.Id, r.Tag(), err)
		}
	}

	if pm.ZipSha256 != "" && !isValidSha256Hex(pm.ZipSha256) {
		return voyerr.ConfigValidation(
			"package.json field 'zipSHA256' must be a 64-character hex string for package %q (release %q)", pkg.Id, r.Tag())
	}

	return nil
}

func isValidSha256Hex(value string) bool {
	if len(value) != sha256.Size*2 {
		return false
	}
	for _, c := range value {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

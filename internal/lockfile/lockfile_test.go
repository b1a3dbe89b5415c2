package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/voyager-vpm/voyager/internal/repository"
)

func TestComputeHash_Deterministic(t *testing.T) {
	content := `{"name": "test"}`
	h1 := ComputeHash(content)
	h2 := ComputeHash(content)
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s != %s", h1, h2)
	}
	if h1[:7] != "sha256:" {
		t.Fatalf("expected sha256 prefix, got %s", h1)
	}
}

func TestComputeHash_DiffersForDifferentContent(t *testing.T) {
	if ComputeHash("content1") == ComputeHash("content2") {
		t.Fatal("expected different hashes")
	}
}

func TestNew_CreatesEmptyLockfile(t *testing.T) {
	lf := New()
	if lf.Version != Version {
		t.Fatalf("unexpected version: %d", lf.Version)
	}
	if len(lf.Packages) != 0 {
		t.Fatalf("expected no packages, got %v", lf.Packages)
	}
}

func repo(t *testing.T, s string) repository.Repository {
	t.Helper()
	r, err := repository.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestGetOrInsertPackage_InsertsOnce(t *testing.T) {
	lf := New()
	r := repo(t, "owner/repo")

	first := lf.GetOrInsertPackage("com.example.pkg", r)
	first.Versions = append(first.Versions, LockedVersion{Version: "1.0.0"})

	second := lf.GetOrInsertPackage("com.example.pkg", r)
	if len(second.Versions) != 1 {
		t.Fatalf("expected existing package to be reused, got %+v", second)
	}
	if len(lf.Packages) != 1 {
		t.Fatalf("expected one package, got %d", len(lf.Packages))
	}
}

func TestSaveAndLoad_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voyager.lock")

	lf := New()
	lf.ManifestHash = "sha256:abc"
	pkg := lf.GetOrInsertPackage("com.example.pkg", repo(t, "owner/repo"))
	pkg.Versions = append(pkg.Versions, NewLockedVersion(
		"v1.0.0",
		"https://example.com/v1.zip",
		`{"name": "pkg"}`,
		PackageManifest{
			Name:        "com.example.pkg",
			Version:     "1.0.0",
			DisplayName: "Example",
			Description: "desc",
			Unity:       "2022.3",
			Author:      PackageAuthor{Name: "Author", Email: "a@example.com"},
			Url:         "https://example.com/v1.zip",
		},
	))

	if err := lf.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ManifestHash != "sha256:abc" {
		t.Fatalf("unexpected manifest hash: %s", loaded.ManifestHash)
	}
	loadedPkg := loaded.GetPackage("com.example.pkg")
	if loadedPkg == nil || len(loadedPkg.Versions) != 1 {
		t.Fatalf("unexpected package: %+v", loadedPkg)
	}
	if loadedPkg.Versions[0].Manifest.Name != "com.example.pkg" {
		t.Fatalf("unexpected manifest: %+v", loadedPkg.Versions[0].Manifest)
	}
}

func TestLoad_RejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voyager.lock")
	if err := os.WriteFile(path, []byte("version = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoad_RejectsTooOldVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voyager.lock")
	if err := os.WriteFile(path, []byte("version = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadOrDefault_ReturnsEmptyWhenMissing(t *testing.T) {
	lf, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lf.Packages) != 0 {
		t.Fatalf("expected empty lockfile, got %+v", lf)
	}
}

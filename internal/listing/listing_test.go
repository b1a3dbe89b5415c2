package listing

import (
	"testing"

	"github.com/voyager-vpm/voyager/internal/lockfile"
	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/repository"
)

func testRepo(t *testing.T, s string) repository.Repository {
	t.Helper()
	r, err := repository.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func testManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	return &manifest.Manifest{
		Vpm: manifest.Vpm{Id: "com.acme", Name: "Acme", Author: "Acme Inc", Url: "https://acme.example.com"},
		Packages: []manifest.Package{
			{Id: "com.acme.widget", Repository: testRepo(t, "acme/widget")},
			{Id: "com.acme.gadget", Repository: testRepo(t, "acme/gadget")},
		},
	}
}

func TestList_DegradesGracefullyWithNilLockfile(t *testing.T) {
	summaries := List(testManifest(t), nil)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.LockedVersionCount != 0 || s.NewestTag != "" {
			t.Fatalf("expected zero-value locked data, got %+v", s)
		}
	}
}

func TestList_ReportsNewestTagFirst(t *testing.T) {
	lf := lockfile.New()
	lf.Packages = []lockfile.LockedPackage{{
		Id:         "com.acme.widget",
		Repository: testRepo(t, "acme/widget"),
		Versions: []lockfile.LockedVersion{
			{Version: "2.0.0", Tag: "v2.0.0"},
			{Version: "1.0.0", Tag: "v1.0.0"},
		},
	}}

	summaries := List(testManifest(t), lf)
	if summaries[0].LockedVersionCount != 2 || summaries[0].NewestTag != "v2.0.0" {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
	if summaries[1].LockedVersionCount != 0 {
		t.Fatalf("expected com.acme.gadget to have no locked versions: %+v", summaries[1])
	}
}

func TestList_PreservesManifestOrder(t *testing.T) {
	summaries := List(testManifest(t), lockfile.New())
	if summaries[0].Id != "com.acme.widget" || summaries[1].Id != "com.acme.gadget" {
		t.Fatalf("unexpected order: %+v", summaries)
	}
}

func TestInfo_ReturnsFullDetail(t *testing.T) {
	lf := lockfile.New()
	lf.Packages = []lockfile.LockedPackage{{
		Id:         "com.acme.widget",
		Repository: testRepo(t, "acme/widget"),
		Versions: []lockfile.LockedVersion{
			{Version: "1.0.0", Tag: "v1.0.0", Url: "https://cdn.example.com/widget-1.0.0.zip"},
		},
	}}

	detail, err := Info(testManifest(t), lf, "com.acme.widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Repository != "acme/widget" || len(detail.Versions) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestInfo_ErrorsOnUnknownPackage(t *testing.T) {
	_, err := Info(testManifest(t), lockfile.New(), "com.acme.nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown package")
	}
}

func TestInfo_HandlesNilLockfile(t *testing.T) {
	detail, err := Info(testManifest(t), nil, "com.acme.widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Versions) != 0 {
		t.Fatalf("expected no versions, got %+v", detail.Versions)
	}
}

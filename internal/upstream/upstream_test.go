package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v45/github"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/voyager-vpm/voyager/internal/release"
	"github.com/voyager-vpm/voyager/internal/repository"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func testClient(t *testing.T, server *httptest.Server) *githubClient {
	t.Helper()
	gh := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	gh.BaseURL = base
	gh.UploadURL = base

	dl := retryablehttp.NewClient()
	dl.Logger = nil
	dl.RetryWaitMin = time.Millisecond
	dl.RetryWaitMax = time.Millisecond
	dl.CheckRetry = shouldRetryDownload

	return &githubClient{gh: gh, download: dl, rateLimitRemaining: 5000}
}

func repo(t *testing.T) repository.Repository {
	t.Helper()
	r, err := repository.Parse("voyager-vpm/demo")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestListReleases_StopsOnShortPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/voyager-vpm/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"tag_name": "v2.0.0", "assets": [{"name": "package.json", "browser_download_url": "http://example.com/v2"}]},
			{"tag_name": "v1.0.0", "assets": [{"name": "other.zip", "browser_download_url": "http://example.com/other"}]}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server)
	releases, err := c.ListReleases(context.Background(), repo(t), "package.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(releases))
	}
	if url, ok := releases[0].AssetURL(); !ok || url != "http://example.com/v2" {
		t.Fatalf("unexpected asset url: %q, %v", url, ok)
	}
	if _, ok := releases[1].AssetURL(); ok {
		t.Fatal("expected no matching asset for second release")
	}
}

func TestListReleases_PaginatesUntilShortPage(t *testing.T) {
	page1 := make([]string, 100)
	for i := range page1 {
		page1[i] = fmt.Sprintf(`{"tag_name": "v%d.0.0", "assets": []}`, i)
	}

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/voyager-vpm/demo/releases", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"tag_name": "v200.0.0", "assets": []}]`)
			return
		}
		fmt.Fprintf(w, `[%s]`, joinJSON(page1))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server)
	releases, err := c.ListReleases(context.Background(), repo(t), "package.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(releases) != 101 {
		t.Fatalf("expected 101 releases across two pages, got %d", len(releases))
	}
	if calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
}

func joinJSON(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

func TestVerifyRepository_MapsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/voyager-vpm/demo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server)
	err := c.VerifyRepository(context.Background(), repo(t))
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*voyerr.Error)
	if !ok {
		t.Fatalf("expected *voyerr.Error, got %T", err)
	}
	if ve.Kind != voyerr.KindUnavailable {
		t.Fatalf("unexpected kind: %v", ve.Kind)
	}
}

func TestVerifyRepository_Succeeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/voyager-vpm/demo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name": "voyager-vpm/demo"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testClient(t, server)
	if err := c.VerifyRepository(context.Background(), repo(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShouldRetryDownload(t *testing.T) {
	cases := []struct {
		name  string
		resp  *http.Response
		err   error
		retry bool
	}{
		{"server error retries", &http.Response{StatusCode: 500}, nil, true},
		{"rate limited retries", &http.Response{StatusCode: 429}, nil, true},
		{"not found does not retry", &http.Response{StatusCode: 404}, nil, false},
		{"ok does not retry", &http.Response{StatusCode: 200}, nil, false},
		{"transport error retries", nil, fmt.Errorf("connection reset"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retry, _ := shouldRetryDownload(context.Background(), tc.resp, tc.err)
			if retry != tc.retry {
				t.Fatalf("expected retry=%v, got %v", tc.retry, retry)
			}
		})
	}
}

func TestDownloadAssets_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"name": "demo"}`)
	}))
	defer assetServer.Close()

	ghStub := httptest.NewServer(http.NewServeMux())
	defer ghStub.Close()
	c := testClient(t, ghStub)
	url := assetServer.URL

	r := release.New("v1.0.0", &url)
	results, err := c.DownloadAssets(context.Background(), []release.Release{r}, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Content == "" {
		t.Fatal("expected content")
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestDownloadAssets_MissingAssetReportsError(t *testing.T) {
	ghStub := httptest.NewServer(http.NewServeMux())
	defer ghStub.Close()
	c := testClient(t, ghStub)
	r := release.New("v1.0.0", nil)
	results, err := c.DownloadAssets(context.Background(), []release.Release{r}, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("expected error for release without asset")
	}
}

// Package upstream implements voyager's GitHub capability: listing
// releases, downloading their assets, and verifying repository access.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v45/github"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/voyager-vpm/voyager/internal/release"
	"github.com/voyager-vpm/voyager/internal/repository"
	"github.com/voyager-vpm/voyager/internal/retry"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// rateLimitBuffer is the minimum remaining API calls before voyager
// pauses to wait for the rate limit window to reset.
const rateLimitBuffer = 10

const downloadTimeout = 30 * time.Second

// AssetResult is the outcome of downloading one release's asset:
// either its raw content, or the error that occurred.
type AssetResult struct {
	Release release.Release
	Content string
	Err     error
}

// Client is voyager's GitHub capability, wrapping a go-github client
// for metadata calls and a retrying HTTP client for asset downloads.
type Client interface {
	// ListReleases lists every release in repo, newest first, recording
	// the download URL of the asset named assetName for releases that
	// have one.
	ListReleases(ctx context.Context, repo repository.Repository, assetName string) ([]release.Release, error)
	// DownloadAssets fetches each release's asset content, retrying
	// transient failures up to maxRetries times, at most maxConcurrent
	// downloads in flight at once.
	DownloadAssets(ctx context.Context, releases []release.Release, maxConcurrent int, maxRetries int) ([]AssetResult, error)
	// VerifyRepository confirms repo exists and is reachable.
	VerifyRepository(ctx context.Context, repo repository.Repository) error
}

type githubClient struct {
	gh                 *github.Client
	download           *retryablehttp.Client
	rateLimitRemaining int64
	rateLimitReset     int64
}

// New builds a GitHub client. token may be empty for unauthenticated access.
func New(token string) (Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	} else {
		httpClient = cleanhttp.DefaultPooledClient()
	}

	gh := github.NewClient(httpClient)

	dl := retryablehttp.NewClient()
	dl.HTTPClient = &http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   downloadTimeout,
	}
	dl.RetryWaitMin = 0
	dl.RetryWaitMax = 0
	dl.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return retry.BackoffDelay(attemptNum + 1)
	}
	dl.CheckRetry = shouldRetryDownload
	dl.Logger = nil

	c := &githubClient{gh: gh, download: dl}
	// A -1 sentinel (no known remaining count) forces the first call to
	// probe the rate limit before doing any real work.
	c.rateLimitRemaining = -1
	return c, nil
}

func shouldRetryDownload(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

func (c *githubClient) checkAndUpdateRateLimit(ctx context.Context) error {
	remaining := atomic.LoadInt64(&c.rateLimitRemaining)
	if remaining >= 0 && remaining > rateLimitBuffer {
		return nil
	}

	limits, _, err := c.gh.RateLimits(ctx)
	if err != nil {
		return voyerr.GitHub("failed to check rate limit", err)
	}
	if limits.Core != nil {
		atomic.StoreInt64(&c.rateLimitRemaining, int64(limits.Core.Remaining))
		atomic.StoreInt64(&c.rateLimitReset, limits.Core.Reset.Unix())
	}
	return nil
}

func (c *githubClient) waitForRateLimit() {
	remaining := atomic.LoadInt64(&c.rateLimitRemaining)
	reset := atomic.LoadInt64(&c.rateLimitReset)

	if remaining > rateLimitBuffer || reset <= 0 {
		return
	}

	now := time.Now().Unix()
	if reset > now {
		time.Sleep(time.Duration(reset-now+1) * time.Second)
	}
}

// ListReleases lists every release in repo, attaching the download URL
// of the asset named assetName where the release has one (nil
// otherwise), paginating 100 at a time until a short page ends iteration.
func (c *githubClient) ListReleases(ctx context.Context, repo repository.Repository, assetName string) ([]release.Release, error) {
	var result []release.Release
	page := 1

	for {
		if err := c.checkAndUpdateRateLimit(ctx); err != nil {
			return nil, err
		}
		c.waitForRateLimit()

		releases, _, err := c.gh.Repositories.ListReleases(ctx, repo.Owner, repo.Repo, &github.ListOptions{
			Page:    page,
			PerPage: 100,
		})
		if err != nil {
			return nil, voyerr.GitHub(fmt.Sprintf("failed to fetch releases for %q", repo.String()), err)
		}

		if len(releases) == 0 {
			break
		}

		for _, r := range releases {
			var assetURL *string
			for _, asset := range r.Assets {
				if asset.GetName() == assetName {
					url := asset.GetBrowserDownloadURL()
					assetURL = &url
					break
				}
			}
			result = append(result, release.New(r.GetTagName(), assetURL))
		}

		if len(releases) < 100 {
			break
		}
		page++
	}

	return result, nil
}

// DownloadAssets fetches each release's asset content concurrently,
// bounded by maxConcurrent and retried up to maxRetries times. Per-asset
// failures, including those caused by a cancelled context, are reported
// in the corresponding AssetResult; the returned error is always nil.
func (c *githubClient) DownloadAssets(ctx context.Context, releases []release.Release, maxConcurrent int, maxRetries int) ([]AssetResult, error) {
	results := make([]AssetResult, len(releases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(maxConcurrent, 1))

	for i, r := range releases {
		i, r := i, r
		g.Go(func() error {
			results[i] = c.downloadOne(ctx, r, maxRetries)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (c *githubClient) downloadOne(ctx context.Context, r release.Release, maxRetries int) AssetResult {
	url, ok := r.AssetURL()
	if !ok {
		return AssetResult{Release: r, Err: voyerr.PackageJsonNotFound(r.Tag())}
	}

	dl := *c.download
	dl.RetryMax = maxRetries

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AssetResult{Release: r, Err: voyerr.Http(url, err)}
	}

	resp, err := dl.Do(req)
	if err != nil {
		return AssetResult{Release: r, Err: voyerr.Http(url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return AssetResult{Release: r, Err: voyerr.Http(url, fmt.Errorf("unexpected status %d", resp.StatusCode))}
	}

	body, err := readAll(resp)
	if err != nil {
		return AssetResult{Release: r, Err: voyerr.Http(url, err)}
	}

	return AssetResult{Release: r, Content: body}
}

// VerifyRepository confirms repo exists and is reachable, translating a
// 404 into a distinct "not found" error from other failures.
func (c *githubClient) VerifyRepository(ctx context.Context, repo repository.Repository) error {
	if err := c.checkAndUpdateRateLimit(ctx); err != nil {
		return err
	}
	c.waitForRateLimit()

	_, resp, err := c.gh.Repositories.Get(ctx, repo.Owner, repo.Repo)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && resp != nil && resp.StatusCode == http.StatusNotFound {
			return voyerr.RepositoryNotFound(repo.String())
		}
		return voyerr.GitHub(fmt.Sprintf("failed to verify repository %q", repo.String()), err)
	}
	return nil
}

func readAll(resp *http.Response) (string, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

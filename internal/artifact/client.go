package artifact

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/retry"
)

const (
	listPageSize         = 100
	downloadMaxRedirects = 3
)

var (
	errListingArtifacts    = errors.New("listing workflow run artifacts")
	errDownloadingArtifact = errors.New("downloading artifact")
	errArtifactNotFound    = errors.New("artifact not found")
	errUnsafeArchivePath   = errors.New("artifact archive escapes destination")
)

// Info is the subset of artifact metadata the tools act on.
type Info struct {
	ID          int64
	Name        string
	SizeInBytes int64
	Expired     bool
}

// Client downloads artifacts produced by earlier workflow runs. Hosted
// store calls are retried with the download policy; everything else
// fails straight through.
type Client struct {
	gh     *github.Client
	repo   gha.Repository
	http   *http.Client
	policy retry.Policy
}

func NewClient(gh *github.Client, repo gha.Repository) *Client {
	return &Client{
		gh:     gh,
		repo:   repo,
		http:   &http.Client{Timeout: 10 * time.Minute},
		policy: retry.DownloadPolicy,
	}
}

// WithRetryPolicy overrides the hosted store retry policy.
func (c *Client) WithRetryPolicy(policy retry.Policy) *Client {
	c.policy = policy

	return c
}

// List returns every artifact of the run, paginated through to the end.
func (c *Client) List(ctx context.Context, runID int64) ([]Info, error) {
	var infos []Info

	opts := &github.ListOptions{PerPage: listPageSize}

	for {
		var (
			list *github.ArtifactList
			resp *github.Response
		)

		err := retry.Do(ctx, c.policy, func() error {
			var err error

			list, resp, err = c.gh.Actions.ListWorkflowRunArtifacts(
				ctx, c.repo.Owner, c.repo.Name, runID, opts)

			return err
		})
		if err != nil {
			return nil, errors.Join(err, errListingArtifacts)
		}

		for _, a := range list.Artifacts {
			infos = append(infos, Info{
				ID:          a.GetID(),
				Name:        a.GetName(),
				SizeInBytes: a.GetSizeInBytes(),
				Expired:     a.GetExpired(),
			})
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return infos, nil
}

// Download fetches one artifact by id and extracts its zip into destDir,
// returning the extracted file paths.
func (c *Client) Download(ctx context.Context, artifactID int64, destDir string) ([]string, error) {
	var extracted []string

	err := retry.Do(ctx, c.policy, func() error {
		var err error

		extracted, err = c.downloadOnce(ctx, artifactID, destDir)

		return err
	})
	if err != nil {
		return nil, errors.Join(err, errDownloadingArtifact)
	}

	return extracted, nil
}

// DownloadNamed fetches the run's artifact with exactly the given name.
// Expired artifacts are ignored; a run without a live match is an error.
func (c *Client) DownloadNamed(ctx context.Context, runID int64, name, destDir string) ([]string, error) {
	var found Info

	opts := &github.ListOptions{PerPage: listPageSize}

	err := retry.Do(ctx, c.policy, func() error {
		list, _, err := c.gh.Actions.ListWorkflowRunArtifacts(
			ctx, c.repo.Owner, c.repo.Name, runID, opts)
		if err != nil {
			return err
		}

		for _, a := range list.Artifacts {
			if a.GetName() == name && !a.GetExpired() {
				found = Info{ID: a.GetID(), Name: a.GetName()}

				return nil
			}
		}

		return retry.Permanent(fmt.Errorf("%w: %q in run %d", errArtifactNotFound, name, runID))
	})
	if err != nil {
		return nil, err
	}

	return c.Download(ctx, found.ID, destDir)
}

func (c *Client) downloadOnce(ctx context.Context, artifactID int64, destDir string) ([]string, error) {
	zipURL, _, err := c.gh.Actions.DownloadArtifact(
		ctx, c.repo.Owner, c.repo.Name, artifactID, downloadMaxRedirects)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", zipURL, resp.Status)
	}

	tmp, err := os.CreateTemp("", "charmci-artifact-*.zip")
	if err != nil {
		return nil, err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return nil, err
	}

	return extractZip(tmp, size, destDir)
}

func extractZip(file *os.File, size int64, destDir string) ([]string, error) {
	reader, err := zip.NewReader(file, size)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	var extracted []string

	for _, entry := range reader.File {
		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return nil, fmt.Errorf("%w: %q", errUnsafeArchivePath, entry.Name)
		}

		target := filepath.Join(destDir, name)

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}

		if err := extractFile(entry, target); err != nil {
			return nil, err
		}

		extracted = append(extracted, target)
	}

	return extracted, nil
}

func extractFile(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}

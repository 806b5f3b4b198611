// Package gha wraps access to the GitHub API from inside an Actions job.
package gha

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

const publicAPIURL = "https://api.github.com"

var (
	errParsingRepository = errors.New("parsing repository")
	errCreatingClient    = errors.New("creating github api client")
)

// Repository is the owner/name pair a workflow receives in
// GITHUB_REPOSITORY.
type Repository struct {
	Owner string
	Name  string
}

func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("%w: %q (want owner/name)", errParsingRepository, s)
	}

	return Repository{Owner: owner, Name: name}, nil
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// NewClient builds an API client for the host this job runs against.
// apiURL comes from GITHUB_API_URL; anything other than the public
// endpoint is treated as a GitHub Enterprise base URL. An empty token
// leaves the client unauthenticated, which is enough for local dry runs.
func NewClient(apiURL, token, userAgent string) (*github.Client, error) {
	client := github.NewClient(&http.Client{Timeout: 5 * time.Minute})

	if token != "" {
		client = client.WithAuthToken(token)
	}

	client.UserAgent = userAgent

	if apiURL != "" && apiURL != publicAPIURL {
		var err error

		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, errors.Join(err, errCreatingClient)
		}
	}

	return client, nil
}

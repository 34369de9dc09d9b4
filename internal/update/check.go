// Package update looks up the latest published sifter release.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Repo is the GitHub repository releases are published under.
const Repo = "garagon/sifter"

// ErrDevBuild is returned by Check for unversioned builds.
var ErrDevBuild = errors.New("development build has no release to compare")

// Release is the outcome of a release lookup.
type Release struct {
	Latest  string
	Current string
}

// Outdated reports whether a newer tag than Current was published.
func (r *Release) Outdated() bool {
	return normalize(r.Latest) != normalize(r.Current)
}

// InstallHint is the command that installs the latest release.
func (r *Release) InstallHint() string {
	return fmt.Sprintf("go install github.com/%s/cmd/sifter@%s", Repo, r.Latest)
}

// Checker queries the GitHub releases API.
type Checker struct {
	BaseURL string
	Client  *http.Client
}

// NewChecker returns a Checker against api.github.com with a short timeout.
func NewChecker() *Checker {
	return &Checker{
		BaseURL: "https://api.github.com",
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

// Check fetches the latest release tag and compares it to current.
func (c *Checker) Check(ctx context.Context, current string) (*Release, error) {
	if current == "" || current == "dev" {
		return nil, ErrDevBuild
	}

	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimSuffix(c.BaseURL, "/"), Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying releases: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("querying releases: unexpected status %s", resp.Status)
	}

	var body struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	if body.TagName == "" {
		return nil, errors.New("release has no tag")
	}
	return &Release{Latest: body.TagName, Current: current}, nil
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

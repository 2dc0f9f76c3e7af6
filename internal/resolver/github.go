// Package resolver discovers the latest release of the client and its runtime descriptor.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
)

const (
	// PropertiesAsset is the release asset holding the runtime descriptor.
	PropertiesAsset = "version.properties"

	// LatestRelease selects the repository's latest release instead of a pinned tag.
	LatestRelease = "latest"

	maxMetadataSize = 1 << 20
	userAgent       = "MeMate-Launcher/%s"
)

// Release is the outcome of one resolution.
type Release struct {
	Tag           string                `json:"tag" yaml:"tag"`
	ClientURL     string                `json:"client_url" yaml:"client_url"`
	PropertiesURL string                `json:"properties_url" yaml:"properties_url"`
	Descriptor    descriptor.Descriptor `json:"descriptor" yaml:"descriptor"`
}

// GitHubResolver resolves releases through the GitHub REST API.
type GitHubResolver struct {
	owner           string
	repo            string
	release         string // "latest" or a tag
	clientAsset     string
	githubToken     string // Optional, for rate limiting
	launcherVersion string
	client          *http.Client
	apiBaseURL      string // Base URL for GitHub API (for testing)
	downloadBaseURL string // Base URL for derived asset links (for testing)
}

// githubRelease represents a GitHub release response
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Name    string        `json:"name"`
	HTMLURL string        `json:"html_url"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// NewGitHubResolver creates a resolver for owner/repo that looks for clientAsset in each release.
func NewGitHubResolver(owner, repo, clientAsset string) *GitHubResolver {
	return &GitHubResolver{
		owner:           owner,
		repo:            repo,
		release:         LatestRelease,
		clientAsset:     clientAsset,
		launcherVersion: "dev",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiBaseURL:      "https://api.github.com",
		downloadBaseURL: "https://github.com",
	}
}

// WithToken sets an optional GitHub token for authentication
func (r *GitHubResolver) WithToken(token string) *GitHubResolver {
	r.githubToken = token
	return r
}

// WithRelease pins a release tag. An empty value or "latest" follows the latest release.
func (r *GitHubResolver) WithRelease(tag string) *GitHubResolver {
	if tag == "" {
		tag = LatestRelease
	}
	r.release = tag
	return r
}

// WithBaseURLs overrides the API and download hosts.
func (r *GitHubResolver) WithBaseURLs(apiBaseURL, downloadBaseURL string) *GitHubResolver {
	if apiBaseURL != "" {
		r.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	}
	if downloadBaseURL != "" {
		r.downloadBaseURL = strings.TrimRight(downloadBaseURL, "/")
	}
	return r
}

// WithTimeout bounds each metadata request.
func (r *GitHubResolver) WithTimeout(timeout time.Duration) *GitHubResolver {
	if timeout > 0 {
		r.client.Timeout = timeout
	}
	return r
}

// WithLauncherVersion sets the version reported in the User-Agent header.
func (r *GitHubResolver) WithLauncherVersion(version string) *GitHubResolver {
	r.launcherVersion = version
	return r
}

// ResolveLatest fetches the release metadata and the companion descriptor.
func (r *GitHubResolver) ResolveLatest(ctx context.Context) (*Release, error) {
	rel, err := r.getRelease(ctx)
	if err != nil {
		return nil, err
	}

	tag := strings.TrimSpace(rel.TagName)
	if tag == "" {
		return nil, &ResolutionError{Stage: StageRelease, URL: r.releaseURL(), Err: fmt.Errorf("release has no tag_name")}
	}

	clientURL, propertiesURL := r.findAssetURLs(rel, tag)

	log.WithFields(log.Fields{
		"component": "resolver",
		"tag":       tag,
	}).Debugf("latest release resolved, fetching %s", propertiesURL)

	data, err := r.fetch(ctx, propertiesURL, "text/plain")
	if err != nil {
		return nil, &ResolutionError{Stage: StageDescriptor, URL: propertiesURL, Err: err}
	}

	desc, err := descriptor.Parse(data)
	if err != nil {
		return nil, &ResolutionError{Stage: StageDescriptor, URL: propertiesURL, Err: err}
	}

	return &Release{
		Tag:           tag,
		ClientURL:     clientURL,
		PropertiesURL: propertiesURL,
		Descriptor:    desc,
	}, nil
}

func (r *GitHubResolver) releaseURL() string {
	if r.release == LatestRelease {
		return fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiBaseURL, r.owner, r.repo)
	}
	return fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", r.apiBaseURL, r.owner, r.repo, url.PathEscape(r.release))
}

// getRelease fetches the selected release from GitHub API
func (r *GitHubResolver) getRelease(ctx context.Context) (*githubRelease, error) {
	apiURL := r.releaseURL()

	data, err := r.fetch(ctx, apiURL, "application/vnd.github+json")
	if err != nil {
		return nil, &ResolutionError{Stage: StageRelease, URL: apiURL, Err: err}
	}

	var release githubRelease
	if err := json.Unmarshal(data, &release); err != nil {
		return nil, &ResolutionError{Stage: StageRelease, URL: apiURL, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &release, nil
}

func (r *GitHubResolver) fetch(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, r.launcherVersion))
	if r.githubToken != "" && r.sameHostAsAPI(req.URL) {
		req.Header.Set("Authorization", "Bearer "+r.githubToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxMetadataSize {
		return nil, fmt.Errorf("response exceeds %d bytes", maxMetadataSize)
	}

	return data, nil
}

// sameHostAsAPI keeps the token away from asset hosts the release may point at.
func (r *GitHubResolver) sameHostAsAPI(u *url.URL) bool {
	api, err := url.Parse(r.apiBaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(api.Host, u.Host)
}

// findAssetURLs picks the client binary and descriptor links, deriving them from the tag when the
// release does not list them as assets.
func (r *GitHubResolver) findAssetURLs(release *githubRelease, tag string) (string, string) {
	var clientURL, propertiesURL string

	for _, asset := range release.Assets {
		switch asset.Name {
		case r.clientAsset:
			clientURL = asset.BrowserDownloadURL
		case PropertiesAsset:
			propertiesURL = asset.BrowserDownloadURL
		}
	}

	if clientURL == "" {
		clientURL = r.derivedAssetURL(tag, r.clientAsset)
	}
	if propertiesURL == "" {
		propertiesURL = r.derivedAssetURL(tag, PropertiesAsset)
	}

	return clientURL, propertiesURL
}

func (r *GitHubResolver) derivedAssetURL(tag, name string) string {
	return fmt.Sprintf("%s/%s/%s/releases/download/%s/%s", r.downloadBaseURL, r.owner, r.repo, url.PathEscape(tag), name)
}

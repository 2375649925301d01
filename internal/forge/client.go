// Client for the Gitea-compatible forge REST API. It is a stateless request
// wrapper: no retries, no caching. Calls used for install resolution raise a
// FetchError on non-200; listing calls degrade to empty results so one broken
// endpoint never takes down a catalog page.

package forge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to one forge instance. Authentication is optional: with no
// token, or a token that failed a TestAuth probe, requests go out
// unauthenticated and only public repositories are reachable.
type Client struct {
	baseURL string
	token   string

	mu         sync.Mutex
	tokenValid bool

	http *http.Client
}

// New creates a client for the given forge base URL. token may be empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		tokenValid: true, // assume valid until proven otherwise
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the configured forge base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// headers builds the request headers, including the token only while it is
// believed valid.
func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	c.mu.Lock()
	if c.token != "" && c.tokenValid {
		h.Set("Authorization", "token "+c.token)
	}
	c.mu.Unlock()
	return h
}

// DownloadHeaders returns the headers an archive download should carry.
// Only the auth token; the Accept header would be wrong for binary content.
func (c *Client) DownloadHeaders() http.Header {
	h := http.Header{}
	c.mu.Lock()
	if c.token != "" && c.tokenValid {
		h.Set("Authorization", "token "+c.token)
	}
	c.mu.Unlock()
	return h
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.headers()
	return c.http.Do(req)
}

// getJSON performs a strict GET: non-200 becomes a FetchError.
func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("forge request %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("forge request %s: reading body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: excerpt(body)}
	}
	return json.Unmarshal(body, v)
}

// getJSONLenient performs a best-effort GET: any failure leaves v untouched
// and returns false. Used for the listing/search endpoints.
func (c *Client) getJSONLenient(ctx context.Context, endpoint string, v interface{}) bool {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		log.Printf("Forge listing request %s failed: %v", endpoint, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Forge listing request %s returned %d", endpoint, resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		log.Printf("Forge listing request %s: bad JSON: %v", endpoint, err)
		return false
	}
	return true
}

// TestAuth probes the configured token with a "who am I" call. A missing
// token counts as success (public access). A failed probe marks the token
// invalid so later requests degrade to unauthenticated access instead of
// failing outright.
func (c *Client) TestAuth(ctx context.Context) bool {
	if c.token == "" {
		log.Println("No forge token configured - assuming public access")
		return true
	}

	resp, err := c.get(ctx, "/api/v1/user")
	valid := false
	if err == nil {
		valid = resp.StatusCode == http.StatusOK
		resp.Body.Close()
	}

	c.mu.Lock()
	c.tokenValid = valid
	c.mu.Unlock()

	if !valid {
		log.Println("Forge authentication failed - token may be expired or revoked")
	}
	return valid
}

// GetRepo fetches repository metadata. Strict.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var r Repo
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/repos/%s/%s", owner, repo), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLatestRelease fetches the latest release for a repository. Strict.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	var r Release
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/repos/%s/%s/releases/latest", owner, repo), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReleaseByTag fetches a release by its tag name. Strict.
func (c *Client) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	var r Release
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/repos/%s/%s/releases/tags/%s", owner, repo, tag), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReleases fetches all releases for a repository. Best effort.
func (c *Client) GetReleases(ctx context.Context, owner, repo string) []Release {
	var releases []Release
	c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/repos/%s/%s/releases", owner, repo), &releases)
	return releases
}

// GetOrgRepos fetches all repositories of an organization. Best effort.
func (c *Client) GetOrgRepos(ctx context.Context, org string) []Repo {
	var repos []Repo
	c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/orgs/%s/repos", org), &repos)
	return repos
}

// GetUserRepos fetches all repositories of a user. Best effort.
func (c *Client) GetUserRepos(ctx context.Context, user string) []Repo {
	var repos []Repo
	c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/users/%s/repos", user), &repos)
	return repos
}

// GetOrgMembers fetches all members of an organization. Best effort.
func (c *Client) GetOrgMembers(ctx context.Context, org string) []User {
	var members []User
	c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/orgs/%s/members", org), &members)
	return members
}

// GetOrgInfo fetches organization metadata. Best effort.
func (c *Client) GetOrgInfo(ctx context.Context, org string) *Org {
	var o Org
	if !c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/orgs/%s", org), &o) {
		return nil
	}
	return &o
}

// GetUserInfo fetches user metadata. Best effort.
func (c *Client) GetUserInfo(ctx context.Context, user string) *User {
	var u User
	if !c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/users/%s", user), &u) {
		return nil
	}
	return &u
}

// GetUserOrgs fetches the authenticated user's organizations. Best effort;
// empty without a token.
func (c *Client) GetUserOrgs(ctx context.Context) []Org {
	if c.token == "" {
		return nil
	}
	var orgs []Org
	c.getJSONLenient(ctx, "/api/v1/user/orgs", &orgs)
	return orgs
}

// GetUserFollowing fetches the users the authenticated user follows. Best
// effort; empty without a token.
func (c *Client) GetUserFollowing(ctx context.Context) []User {
	if c.token == "" {
		return nil
	}
	var users []User
	c.getJSONLenient(ctx, "/api/v1/user/following", &users)
	return users
}

// GetCurrentUser fetches the authenticated user. Best effort; nil without a
// token.
func (c *Client) GetCurrentUser(ctx context.Context) *User {
	if c.token == "" {
		return nil
	}
	var u User
	if !c.getJSONLenient(ctx, "/api/v1/user", &u) {
		return nil
	}
	return &u
}

// SearchRepos lists all repositories visible to the client. Best effort.
func (c *Client) SearchRepos(ctx context.Context, limit int) []Repo {
	var result searchResponse
	if !c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/repos/search?limit=%d", limit), &result) {
		return nil
	}
	return result.Data
}

// GetReadme fetches and decodes the repository README via the contents API,
// trying common filename variants. Best effort; empty string when absent.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) string {
	for _, name := range []string{"README.md", "readme.md", "README"} {
		var contents contentsResponse
		if !c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/repos/%s/%s/contents/%s", owner, repo, name), &contents) {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(contents.Content)
		if err != nil {
			continue
		}
		return string(decoded)
	}
	return ""
}

// GetIconURL probes conventional icon paths and returns a raw URL for the
// first one that exists, or empty when the repo ships no icon.
func (c *Client) GetIconURL(ctx context.Context, owner, repo string) string {
	iconPaths := []string{
		"icons/icon.png",
		"icons/icon@2x.png",
		"Icons/icon.png",
		"Icons/icon@2x.png",
		"icon.png",
	}
	for _, path := range iconPaths {
		var contents contentsResponse
		if c.getJSONLenient(ctx, fmt.Sprintf("/api/v1/repos/%s/%s/contents/%s", owner, repo, path), &contents) {
			return fmt.Sprintf("%s/%s/%s/raw/branch/main/%s", c.baseURL, owner, repo, path)
		}
	}
	return ""
}

// ArchiveZipURL builds the archive-by-ref download URL for a repository
// snapshot at the given branch or tag.
func (c *Client) ArchiveZipURL(owner, repo, ref string) string {
	return fmt.Sprintf("%s/api/v1/repos/%s/%s/archive/%s.zip", c.baseURL, owner, repo, ref)
}

// PickAsset selects which release asset to download:
//  1. zero assets is its own failure,
//  2. an explicit assetName must match exactly,
//  3. a single .zip among the assets wins,
//  4. a single asset of any kind wins,
//  5. anything else is ambiguous.
func PickAsset(release *Release, assetName string) (*Asset, error) {
	if len(release.Assets) == 0 {
		return nil, ErrNoAssets
	}

	if assetName != "" {
		for i := range release.Assets {
			if release.Assets[i].Name == assetName {
				return &release.Assets[i], nil
			}
		}
		return nil, &AssetNotFoundError{Name: assetName}
	}

	var zips []*Asset
	for i := range release.Assets {
		if strings.HasSuffix(strings.ToLower(release.Assets[i].Name), ".zip") {
			zips = append(zips, &release.Assets[i])
		}
	}
	if len(zips) == 1 {
		return zips[0], nil
	}

	if len(release.Assets) == 1 {
		return &release.Assets[0], nil
	}

	return nil, ErrAmbiguousAssets
}

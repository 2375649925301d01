package forge

// Structures for the subset of the Gitea REST API this application consumes.
// Fields not used anywhere are intentionally left out.

// User is a forge user or organization owner.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Repo is the repository metadata object.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	StarsCount    int    `json:"stars_count"`
	UpdatedAt     string `json:"updated_at"`
	Owner         User   `json:"owner"`
}

// Release is a tagged release, possibly carrying uploaded assets.
type Release struct {
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Body        string  `json:"body"`
	PublishedAt string  `json:"published_at"`
	Assets      []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Org is an organization.
type Org struct {
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

// contentsResponse is the contents API object for a single file.
type contentsResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// searchResponse wraps /repos/search results.
type searchResponse struct {
	OK   bool   `json:"ok"`
	Data []Repo `json:"data"`
}

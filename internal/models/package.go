// Core data structures shared across packages. Keeping these in one place
// avoids import cycles between the registry, installer and API layers.
package models

import "time"

// PackageKind says what kind of content a package carries and therefore
// where its files get installed.
type PackageKind string

const (
	KindModule         PackageKind = "module"          // backend plugin code
	KindWebAsset       PackageKind = "web_asset"       // frontend script bundle
	KindTemplateBundle PackageKind = "template_bundle" // reusable config templates
)

// Valid reports whether k is one of the known kinds.
func (k PackageKind) Valid() bool {
	switch k {
	case KindModule, KindWebAsset, KindTemplateBundle:
		return true
	}
	return false
}

// InstallMode selects the download mechanism.
type InstallMode string

const (
	ModeArchive InstallMode = "archive_by_ref" // repo snapshot zip by branch/tag
	ModeAsset   InstallMode = "release_asset"  // file attached to a release
)

// Install sources. External packages are tracked but exempt from automatic
// update checks.
const (
	SourceForge    = "forge"
	SourceExternal = "external"
)

// PackageRequest is a transient install request, constructed per call.
type PackageRequest struct {
	Owner     string      `json:"owner"`
	Repo      string      `json:"repo"`
	Kind      PackageKind `json:"kind"`
	Mode      InstallMode `json:"mode,omitempty"`
	Tag       string      `json:"tag,omitempty"`
	AssetName string      `json:"asset_name,omitempty"`
}

// ResolvedSource is the outcome of reference resolution. Never persisted.
type ResolvedSource struct {
	DownloadURL string      `json:"download_url"`
	ResolvedRef string      `json:"resolved_ref"`
	Mode        InstallMode `json:"mode"`
	AssetName   string      `json:"asset_name,omitempty"`
}

// TrackedPackage is one entry in the durable package registry.
type TrackedPackage struct {
	RepoName      string      `json:"repo_name"`
	Owner         string      `json:"owner"`
	Kind          PackageKind `json:"package_kind"`
	InstallSource string      `json:"install_source"`

	InstalledVersion string `json:"installed_version"`
	LatestVersion    string `json:"latest_version"`
	UpdateAvailable  bool   `json:"update_available"`

	// How the package was installed, so future updates use the same method.
	Mode      InstallMode `json:"mode,omitempty"`
	AssetName string      `json:"asset_name,omitempty"`

	InstallDate time.Time  `json:"install_date"`
	LastUpdate  time.Time  `json:"last_update"`
	LastCheck   *time.Time `json:"last_check,omitempty"`

	ReleaseSummary string `json:"release_summary,omitempty"`
	ReleaseNotes   string `json:"release_notes,omitempty"`
}

// CustomRepoEntry is a repo added to the visible catalog by the user,
// independent of whether it is installed.
type CustomRepoEntry struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Source string `json:"source"`
	Kind   string `json:"kind,omitempty"`
	URL    string `json:"url,omitempty"`
}

// HiddenRepoEntry hides a repo from catalog views. Purely a display filter;
// it never blocks an install.
type HiddenRepoEntry struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// InstallResult is returned by the install pipeline.
type InstallResult struct {
	PackageID       string      `json:"package_id"`
	ResolvedVersion string      `json:"resolved_version"`
	Kind            PackageKind `json:"package_kind"`
	MainScript      string      `json:"main_script,omitempty"`  // web_asset only
	ResourceURL     string      `json:"resource_url,omitempty"` // web_asset only
	RestartRequired bool        `json:"restart_required"`
}

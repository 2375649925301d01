package forge

import (
	"errors"
	"fmt"
)

// maxBodyExcerpt caps the response body captured into fetch errors.
const maxBodyExcerpt = 512

// FetchError is returned when an API call used for resolution fails with a
// non-200 status. Listing calls never return it; they degrade to empty results.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("forge request %s failed: %d %s", e.Endpoint, e.StatusCode, e.Body)
}

// Asset-picking failures. Callers surface these to the user verbatim, so each
// case gets its own sentinel.
var (
	ErrNoAssets = errors.New("release has no assets; attach a ZIP asset to the release, or use archive mode")

	ErrAmbiguousAssets = errors.New("multiple assets found; specify asset_name")
)

// AssetNotFoundError is returned when an explicitly requested asset name does
// not exist in the release.
type AssetNotFoundError struct {
	Name string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %q not found in release assets", e.Name)
}

func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt])
	}
	return string(body)
}

// Reference resolution: turning an install request into a concrete download
// URL. Two strategies exist, tried in fixed order regardless of the requested
// mode: the repo archive zip first, then a curated release asset. The archive
// path works for any tagged repo without requiring maintainers to upload
// assets, so it wins whenever it can; the asset path is the silent recovery.
package resolver

import (
	"context"
	"fmt"
	"log"

	"github.com/mendels/forgestore/internal/forge"
	"github.com/mendels/forgestore/internal/models"
)

// Forge is the slice of the forge client the resolver needs.
type Forge interface {
	GetRepo(ctx context.Context, owner, repo string) (*forge.Repo, error)
	GetLatestRelease(ctx context.Context, owner, repo string) (*forge.Release, error)
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*forge.Release, error)
	ArchiveZipURL(owner, repo, ref string) string
}

// Resolver decides which ref and download mechanism to use for a request.
type Resolver struct {
	forge Forge
}

// New creates a Resolver backed by the given forge client.
func New(f Forge) *Resolver {
	return &Resolver{forge: f}
}

// Resolve picks a download URL and ref for the request. The archive strategy
// is always attempted first; any failure there falls through silently to the
// release-asset strategy. If both fail, the asset-strategy error is returned
// since that path carries the user's explicit mode/asset intent.
func (r *Resolver) Resolve(ctx context.Context, req models.PackageRequest) (*models.ResolvedSource, error) {
	ref, err := r.refForArchive(ctx, req.Owner, req.Repo, req.Tag)
	if err == nil {
		return &models.ResolvedSource{
			DownloadURL: r.forge.ArchiveZipURL(req.Owner, req.Repo, ref),
			ResolvedRef: ref,
			Mode:        models.ModeArchive,
		}, nil
	}
	log.Printf("Archive resolution failed for %s/%s, trying release asset: %v", req.Owner, req.Repo, err)

	source, err := r.resolveAsset(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolving %s/%s: %w", req.Owner, req.Repo, err)
	}
	return source, nil
}

// refForArchive resolves the ref for an archive download: explicit tag, else
// the latest release tag, else the repo's default branch. The branch fallback
// is a degraded result and is logged as such.
func (r *Resolver) refForArchive(ctx context.Context, owner, repo, tag string) (string, error) {
	if tag != "" {
		return tag, nil
	}

	latest, err := r.forge.GetLatestRelease(ctx, owner, repo)
	if err == nil {
		if ref := releaseTag(latest); ref != "" {
			return ref, nil
		}
	}

	repoInfo, err := r.forge.GetRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	branch := repoInfo.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	log.Printf("No release tag found for %s/%s, falling back to branch %s", owner, repo, branch)
	return branch, nil
}

// resolveAsset resolves a tag (no branch fallback here: assets only exist on
// releases) and runs the asset-picking rule against that release.
func (r *Resolver) resolveAsset(ctx context.Context, req models.PackageRequest) (*models.ResolvedSource, error) {
	tag := req.Tag
	if tag == "" {
		latest, err := r.forge.GetLatestRelease(ctx, req.Owner, req.Repo)
		if err != nil {
			return nil, fmt.Errorf("no release found (asset mode requires a release with a ZIP asset): %w", err)
		}
		tag = releaseTag(latest)
		if tag == "" {
			return nil, fmt.Errorf("could not determine latest release tag for %s/%s", req.Owner, req.Repo)
		}
	}

	release, err := r.forge.GetReleaseByTag(ctx, req.Owner, req.Repo, tag)
	if err != nil {
		return nil, err
	}

	asset, err := forge.PickAsset(release, req.AssetName)
	if err != nil {
		return nil, err
	}

	return &models.ResolvedSource{
		DownloadURL: asset.BrowserDownloadURL,
		ResolvedRef: tag,
		Mode:        models.ModeAsset,
		AssetName:   asset.Name,
	}, nil
}

func releaseTag(release *forge.Release) string {
	if release.TagName != "" {
		return release.TagName
	}
	return release.Name
}

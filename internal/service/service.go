// Package service wires the forge client, resolver, installer and registry
// into the operations the API exposes. Handlers stay thin; the sequencing
// rules live here.
package service

import (
	"context"
	"fmt"
	"log"

	"github.com/mendels/forgestore/internal/forge"
	"github.com/mendels/forgestore/internal/installer"
	"github.com/mendels/forgestore/internal/models"
	"github.com/mendels/forgestore/internal/registry"
	"github.com/mendels/forgestore/internal/resolver"
)

// Service executes package operations end to end.
type Service struct {
	forge     *forge.Client
	resolver  *resolver.Resolver
	installer *installer.Installer
	registry  *registry.Registry
}

// New creates a Service over the given collaborators.
func New(fc *forge.Client, res *resolver.Resolver, ins *installer.Installer, reg *registry.Registry) *Service {
	return &Service{forge: fc, resolver: res, installer: ins, registry: reg}
}

// Registry exposes the underlying registry for read paths and event
// subscriptions.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Install resolves, downloads and places a package, then records it. The
// registry is only touched after placement succeeds, so a failed install
// never leaves a phantom entry.
func (s *Service) Install(ctx context.Context, req models.PackageRequest) (*models.InstallResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown package kind %q", req.Kind)
	}

	// An already-tracked package remembers how it was installed; a bare
	// update request reuses that.
	if req.AssetName == "" {
		if existing, ok := s.registry.GetByRepo(req.Owner, req.Repo); ok {
			req.AssetName = existing.AssetName
		}
	}

	source, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("Installing %s/%s (%s) from %s", req.Owner, req.Repo, source.ResolvedRef, source.DownloadURL)

	placed, err := s.installer.Install(ctx, source.DownloadURL, s.forge.DownloadHeaders(), req.Kind, req.Repo)
	if err != nil {
		return nil, fmt.Errorf("installing %s/%s: %w", req.Owner, req.Repo, err)
	}

	pkg, err := s.registry.RecordInstall(req.Owner, req.Repo, req.Kind, models.SourceForge, source.ResolvedRef, source.Mode, source.AssetName)
	if err != nil {
		return nil, fmt.Errorf("recording install of %s/%s: %w", req.Owner, req.Repo, err)
	}

	result := &models.InstallResult{
		PackageID:       registry.DeriveID(req.Owner, req.Repo),
		ResolvedVersion: pkg.InstalledVersion,
		Kind:            req.Kind,
		RestartRequired: req.Kind == models.KindModule,
	}
	if req.Kind == models.KindWebAsset {
		result.MainScript = placed.MainScript
		result.ResourceURL = installer.ResourceURL(req.Repo, placed.MainScript)
	}
	return result, nil
}

// Update reinstalls a tracked package at its newest resolvable version,
// reusing the remembered install parameters.
func (s *Service) Update(ctx context.Context, id string) (*models.InstallResult, error) {
	pkg, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("package %q is not tracked", id)
	}
	return s.Install(ctx, models.PackageRequest{
		Owner:     pkg.Owner,
		Repo:      pkg.RepoName,
		Kind:      pkg.Kind,
		Mode:      pkg.Mode,
		AssetName: pkg.AssetName,
	})
}

// Uninstall removes installed files and drops the registry entry. The two
// steps are independent: a file removal failure is logged but never blocks
// untracking, so a half-deleted install cannot wedge the registry.
func (s *Service) Uninstall(ctx context.Context, id string) (bool, error) {
	pkg, ok := s.registry.Get(id)
	if !ok {
		return false, nil
	}

	if err := s.installer.Uninstall(pkg.Kind, pkg.RepoName); err != nil {
		log.Printf("Could not remove files for %s: %v", id, err)
	}
	return s.registry.Remove(id)
}

// CheckUpdates runs one update sweep over every tracked forge package.
func (s *Service) CheckUpdates(ctx context.Context) (int, error) {
	return s.registry.CheckUpdates(ctx, releaseSource{s.forge})
}

// releaseSource adapts the forge client to the registry's narrow view of a
// release.
type releaseSource struct {
	forge *forge.Client
}

func (rs releaseSource) LatestRelease(ctx context.Context, owner, repo string) (*registry.ReleaseInfo, error) {
	release, err := rs.forge.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	tag := release.TagName
	if tag == "" {
		tag = release.Name
	}
	return &registry.ReleaseInfo{
		Tag:   tag,
		Title: release.Name,
		Notes: release.Body,
	}, nil
}

package registry

import (
	"fmt"
	"strings"

	"github.com/mendels/forgestore/internal/models"
	"github.com/mendels/forgestore/internal/store"
)

// The auxiliary repo lists live in their own documents so that edits to one
// never rewrite the other.

type customReposDocument struct {
	Schema  int                      `json:"schema"`
	Entries []models.CustomRepoEntry `json:"entries"`
}

type hiddenReposDocument struct {
	Schema  int                      `json:"schema"`
	Entries []models.HiddenRepoEntry `json:"entries"`
}

func (r *Registry) loadRepoDocuments() error {
	var custom customReposDocument
	if _, err := r.store.LoadDocument(store.KeyCustomRepos, &custom); err != nil {
		return fmt.Errorf("failed to load custom repos: %w", err)
	}
	r.customRepos = custom.Entries

	var hidden hiddenReposDocument
	if _, err := r.store.LoadDocument(store.KeyHiddenRepos, &hidden); err != nil {
		return fmt.Errorf("failed to load hidden repos: %w", err)
	}
	r.hiddenRepos = hidden.Entries
	return nil
}

func sameRepo(aOwner, aRepo, bOwner, bRepo string) bool {
	return strings.EqualFold(aOwner, bOwner) && strings.EqualFold(aRepo, bRepo)
}

// AddCustomRepo appends a repo to the user catalog. Duplicate coordinates,
// compared case-insensitively, are ignored and reported as false.
func (r *Registry) AddCustomRepo(entry models.CustomRepoEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.customRepos {
		if sameRepo(existing.Owner, existing.Repo, entry.Owner, entry.Repo) {
			return false, nil
		}
	}
	r.customRepos = append(r.customRepos, entry)
	return true, r.persistCustomReposLocked()
}

// RemoveCustomRepo drops a repo from the user catalog.
func (r *Registry) RemoveCustomRepo(owner, repo string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.customRepos {
		if sameRepo(existing.Owner, existing.Repo, owner, repo) {
			r.customRepos = append(r.customRepos[:i], r.customRepos[i+1:]...)
			return true, r.persistCustomReposLocked()
		}
	}
	return false, nil
}

// CustomRepos returns a copy of the catalog entries.
func (r *Registry) CustomRepos() []models.CustomRepoEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CustomRepoEntry, len(r.customRepos))
	copy(out, r.customRepos)
	return out
}

// HideRepo adds a repo to the hidden list. Hiding only filters catalog
// views; it never blocks installs or update checks.
func (r *Registry) HideRepo(owner, repo string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hiddenRepos {
		if sameRepo(existing.Owner, existing.Repo, owner, repo) {
			return false, nil
		}
	}
	r.hiddenRepos = append(r.hiddenRepos, models.HiddenRepoEntry{Owner: owner, Repo: repo})
	return true, r.persistHiddenReposLocked()
}

// UnhideRepo removes a repo from the hidden list.
func (r *Registry) UnhideRepo(owner, repo string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.hiddenRepos {
		if sameRepo(existing.Owner, existing.Repo, owner, repo) {
			r.hiddenRepos = append(r.hiddenRepos[:i], r.hiddenRepos[i+1:]...)
			return true, r.persistHiddenReposLocked()
		}
	}
	return false, nil
}

// HiddenRepos returns a copy of the hidden list.
func (r *Registry) HiddenRepos() []models.HiddenRepoEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.HiddenRepoEntry, len(r.hiddenRepos))
	copy(out, r.hiddenRepos)
	return out
}

// IsHidden reports whether a repo is on the hidden list.
func (r *Registry) IsHidden(owner, repo string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.hiddenRepos {
		if sameRepo(existing.Owner, existing.Repo, owner, repo) {
			return true
		}
	}
	return false
}

func (r *Registry) persistCustomReposLocked() error {
	doc := customReposDocument{Schema: store.SchemaVersion, Entries: r.customRepos}
	return r.store.SaveDocument(store.KeyCustomRepos, doc)
}

func (r *Registry) persistHiddenReposLocked() error {
	doc := hiddenReposDocument{Schema: store.SchemaVersion, Entries: r.hiddenRepos}
	return r.store.SaveDocument(store.KeyHiddenRepos, doc)
}

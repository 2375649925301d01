package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mendels/forgestore/internal/models"
)

// repoSummary is one catalog row: forge metadata plus local install state.
type repoSummary struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	FullName    string `json:"full_name"`
	Description string `json:"description,omitempty"`
	Stars       int    `json:"stars"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Source      string `json:"source"` // "forge" or "custom"
	Installed   bool   `json:"installed"`
	Hidden      bool   `json:"hidden"`
}

// handleBrowseRepos lists everything the forge exposes plus the user's
// custom entries, annotated with install state. Hidden repos are filtered
// out unless include_hidden=true is passed.
func (s *Server) handleBrowseRepos(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"
	reg := s.svc.Registry()

	seen := make(map[string]bool)
	var summaries []repoSummary

	for _, repo := range s.app.Forge().SearchRepos(r.Context(), 100) {
		owner := repo.Owner.Login
		if owner == "" || seen[strings.ToLower(owner+"/"+repo.Name)] {
			continue
		}
		seen[strings.ToLower(owner+"/"+repo.Name)] = true

		_, installed := reg.GetByRepo(owner, repo.Name)
		summaries = append(summaries, repoSummary{
			Owner:       owner,
			Repo:        repo.Name,
			FullName:    repo.FullName,
			Description: repo.Description,
			Stars:       repo.StarsCount,
			UpdatedAt:   repo.UpdatedAt,
			Source:      "forge",
			Installed:   installed,
			Hidden:      reg.IsHidden(owner, repo.Name),
		})
	}

	for _, entry := range reg.CustomRepos() {
		if seen[strings.ToLower(entry.Owner+"/"+entry.Repo)] {
			continue
		}
		seen[strings.ToLower(entry.Owner+"/"+entry.Repo)] = true

		_, installed := reg.GetByRepo(entry.Owner, entry.Repo)
		summaries = append(summaries, repoSummary{
			Owner:     entry.Owner,
			Repo:      entry.Repo,
			FullName:  entry.Owner + "/" + entry.Repo,
			Source:    "custom",
			Installed: installed,
			Hidden:    reg.IsHidden(entry.Owner, entry.Repo),
		})
	}

	if !includeHidden {
		visible := summaries[:0]
		for _, sum := range summaries {
			if !sum.Hidden {
				visible = append(visible, sum)
			}
		}
		summaries = visible
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].FullName < summaries[j].FullName
	})
	RespondWithJSON(w, http.StatusOK, summaries)
}

// handleGetRepoDetails returns full forge metadata for one repo, including
// the latest release and an icon URL when the repo ships one.
func (s *Server) handleGetRepoDetails(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repoName := chi.URLParam(r, "repo")

	repo, err := s.app.Forge().GetRepo(r.Context(), owner, repoName)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}

	details := map[string]interface{}{
		"repo":     repo,
		"icon_url": s.app.Forge().GetIconURL(r.Context(), owner, repoName),
	}
	if latest, err := s.app.Forge().GetLatestRelease(r.Context(), owner, repoName); err == nil {
		details["latest_release"] = latest
	}
	if pkg, ok := s.svc.Registry().GetByRepo(owner, repoName); ok {
		details["package"] = newPackageView(*pkg)
	}
	RespondWithJSON(w, http.StatusOK, details)
}

func (s *Server) handleGetReadme(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repoName := chi.URLParam(r, "repo")

	readme := s.app.Forge().GetReadme(r.Context(), owner, repoName)
	if readme == "" {
		RespondWithError(w, http.StatusNotFound, "No README found")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"readme": readme})
}

func (s *Server) handleListCustomRepos(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.svc.Registry().CustomRepos())
}

func (s *Server) handleAddCustomRepo(w http.ResponseWriter, r *http.Request) {
	var entry models.CustomRepoEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if entry.Owner == "" || entry.Repo == "" {
		RespondWithError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}
	if entry.Source == "" {
		entry.Source = "user"
	}

	added, err := s.svc.Registry().AddCustomRepo(entry)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		RespondWithError(w, http.StatusConflict, "Repository already in catalog")
		return
	}
	RespondWithJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveCustomRepo(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Registry().RemoveCustomRepo(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		RespondWithError(w, http.StatusNotFound, "Repository not in catalog")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleListHiddenRepos(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.svc.Registry().HiddenRepos())
}

func (s *Server) handleHideRepo(w http.ResponseWriter, r *http.Request) {
	var entry models.HiddenRepoEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if entry.Owner == "" || entry.Repo == "" {
		RespondWithError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}

	hidden, err := s.svc.Registry().HideRepo(entry.Owner, entry.Repo)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !hidden {
		RespondWithError(w, http.StatusConflict, "Repository already hidden")
		return
	}
	RespondWithJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUnhideRepo(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Registry().UnhideRepo(chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		RespondWithError(w, http.StatusNotFound, "Repository is not hidden")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

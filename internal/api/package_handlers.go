package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mendels/forgestore/internal/models"
	"github.com/mendels/forgestore/internal/registry"
)

// kindDisplay maps package kinds to the labels the UI shows.
var kindDisplay = map[models.PackageKind]string{
	models.KindModule:         "Module",
	models.KindWebAsset:       "Web Asset",
	models.KindTemplateBundle: "Template Bundle",
}

// packageView is a tracked package decorated with derived display fields.
type packageView struct {
	models.TrackedPackage
	ID          string `json:"id"`
	KindDisplay string `json:"kind_display"`
	VersionHint string `json:"version_hint,omitempty"`
}

func newPackageView(pkg models.TrackedPackage) packageView {
	view := packageView{
		TrackedPackage: pkg,
		ID:             registry.DeriveID(pkg.Owner, pkg.RepoName),
		KindDisplay:    kindDisplay[pkg.Kind],
	}
	if pkg.UpdateAvailable {
		view.VersionHint = registry.VersionHint(pkg.InstalledVersion, pkg.LatestVersion)
	}
	return view
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages := s.svc.Registry().List()
	views := make([]packageView, 0, len(packages))
	for _, pkg := range packages {
		views = append(views, newPackageView(pkg))
	}
	RespondWithJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	pkg, ok := s.svc.Registry().Get(id)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Package not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, newPackageView(*pkg))
}

func (s *Server) handleInstallPackage(w http.ResponseWriter, r *http.Request) {
	var req models.PackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Owner == "" || req.Repo == "" {
		RespondWithError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}
	if !req.Kind.Valid() {
		RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown package kind %q", req.Kind))
		return
	}

	result, err := s.svc.Install(r.Context(), req)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	if result.ResourceURL != "" {
		result.ResourceURL = cacheBust(result.ResourceURL)
	}
	RespondWithJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	result, err := s.svc.Update(r.Context(), id)
	if err != nil {
		if _, ok := s.svc.Registry().Get(id); !ok {
			RespondWithError(w, http.StatusNotFound, "Package not found")
			return
		}
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	if result.ResourceURL != "" {
		result.ResourceURL = cacheBust(result.ResourceURL)
	}
	RespondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleUninstallPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	removed, err := s.svc.Uninstall(r.Context(), id)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		RespondWithError(w, http.StatusNotFound, "Package not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleCheckUpdates(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.CheckUpdates(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"pending_updates": pending})
}

// cacheBust appends a timestamp query parameter so browsers pick up a newly
// installed script immediately.
func cacheBust(url string) string {
	return fmt.Sprintf("%s?v=%d", url, time.Now().Unix())
}

package handlers

import (
	"net/http"

	"flowcanvas/internal/common"
	"flowcanvas/internal/designs"

	"github.com/go-chi/chi/v5"
)

// CreateVersion handles POST /designs/{id}/versions.
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req designs.CreateVersionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}

	version, err := h.service.CreateVersion(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, version)
}

// ListVersions handles GET /designs/{id}/versions, newest first.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if versions == nil {
		versions = []*designs.Version{}
	}
	common.WriteJSON(w, r, http.StatusOK, versions)
}

// GetVersion handles GET /versions/{versionID}.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.GetVersion(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, version)
}

// SetCurrentVersion handles POST /versions/{versionID}/promote.
func (h *Handler) SetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.SetCurrentVersion(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, version)
}

// Rollback handles POST /designs/{id}/rollback/{versionID}.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	design, err := h.service.Rollback(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "versionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// CompareVersions handles GET /versions/{versionID}/compare/{otherID}.
func (h *Handler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	diff, err := h.service.Compare(r.Context(),
		chi.URLParam(r, "versionID"), chi.URLParam(r, "otherID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, diff)
}

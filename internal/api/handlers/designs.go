package handlers

import (
	"io"
	"net/http"

	"flowcanvas/internal/common"
	"flowcanvas/internal/designs"
	"flowcanvas/pkg/errors"

	"github.com/go-chi/chi/v5"
)

// CreateDesign handles POST /designs.
func (h *Handler) CreateDesign(w http.ResponseWriter, r *http.Request) {
	var req designs.CreateDesignRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.CreateDesign(r.Context(), &req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

// GetDesign handles GET /designs/{id}.
func (h *Handler) GetDesign(w http.ResponseWriter, r *http.Request) {
	design, err := h.service.GetDesign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// ListDesigns handles GET /designs.
func (h *Handler) ListDesigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &designs.DesignFilter{
		PaginationRequest: parsePagination(r),
		Status:            q.Get("status"),
		Category:          q.Get("category"),
		Search:            q.Get("search"),
	}

	items, total, err := h.service.ListDesigns(r.Context(), filter)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if items == nil {
		items = []*designs.Design{}
	}
	meta := common.NewPaginationResponse(filter.Page, filter.PageSize, total)
	common.WriteJSONWithMeta(w, r, http.StatusOK, items, meta)
}

// UpdateDesign handles PUT /designs/{id}.
func (h *Handler) UpdateDesign(w http.ResponseWriter, r *http.Request) {
	var req designs.UpdateDesignRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.UpdateDesign(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// DeleteDesign handles DELETE /designs/{id}.
func (h *Handler) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDesign(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddNode handles POST /designs/{id}/nodes.
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	var node designs.Node
	if err := common.DecodeJSON(r, &node); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.AddNode(r.Context(), chi.URLParam(r, "id"), node)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

// UpdateNode handles PUT /designs/{id}/nodes/{nodeID}.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var update designs.NodeUpdate
	if err := common.DecodeJSON(r, &update); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.UpdateNode(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "nodeID"), &update)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// DeleteNode handles DELETE /designs/{id}/nodes/{nodeID}. Connections
// touching the node go with it.
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	design, err := h.service.DeleteNode(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "nodeID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// AddConnection handles POST /designs/{id}/connections.
func (h *Handler) AddConnection(w http.ResponseWriter, r *http.Request) {
	var conn designs.Connection
	if err := common.DecodeJSON(r, &conn); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.AddConnection(r.Context(), chi.URLParam(r, "id"), conn)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

// DeleteConnection handles DELETE /designs/{id}/connections/{connectionID}.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	design, err := h.service.DeleteConnection(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "connectionID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, design)
}

// ValidateDesign handles POST /designs/{id}/validate. The result is a
// success response either way; validity lives in the payload.
func (h *Handler) ValidateDesign(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, result)
}

// DuplicateDesign handles POST /designs/{id}/duplicate.
func (h *Handler) DuplicateDesign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		CreatedBy string `json:"created_by"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.DuplicateDesign(r.Context(), chi.URLParam(r, "id"), req.Name, req.CreatedBy)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

// ExportDesign handles GET /designs/{id}/export?format=json|xml. The payload
// is the raw document, not the envelope, so it can be saved to a file as-is.
func (h *Handler) ExportDesign(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	data, contentType, err := h.service.ExportDesign(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	w.Header().Set(common.HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export payload", "error", err)
	}
}

// ImportDesign handles POST /designs/import. The body is the raw export
// document; format comes from the query or is sniffed from the content.
func (h *Handler) ImportDesign(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, common.MaxImportSize)
	data, err := io.ReadAll(body)
	if err != nil {
		common.WriteError(w, r, errors.ValidationError(errors.CodeInvalidInput,
			"failed to read import payload"))
		return
	}

	design, err := h.service.ImportDesign(r.Context(),
		data, r.URL.Query().Get("format"), r.URL.Query().Get("created_by"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

// GetStatistics handles GET /designs/{id}/statistics.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, stats)
}

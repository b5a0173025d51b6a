package handlers

import (
	"net/http"

	"flowcanvas/internal/common"
	"flowcanvas/internal/designs"

	"github.com/go-chi/chi/v5"
)

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	filter := &designs.TemplateFilter{
		PaginationRequest: parsePagination(r),
		Category:          r.URL.Query().Get("category"),
	}

	items, total, err := h.service.ListTemplates(r.Context(), filter)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if items == nil {
		items = []*designs.Template{}
	}
	meta := common.NewPaginationResponse(filter.Page, filter.PageSize, total)
	common.WriteJSONWithMeta(w, r, http.StatusOK, items, meta)
}

// GetTemplate handles GET /templates/{templateID}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.service.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusOK, template)
}

// CreateFromTemplate handles POST /templates/{templateID}/designs.
func (h *Handler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		CreatedBy string `json:"created_by"`
	}
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}

	design, err := h.service.CreateFromTemplate(r.Context(),
		chi.URLParam(r, "templateID"), req.Name, req.CreatedBy)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, r, http.StatusCreated, design)
}

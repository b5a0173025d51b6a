// Package handlers implements the REST surface for the designer API.
package handlers

import (
	"net/http"
	"strconv"

	"flowcanvas/internal/common"
	"flowcanvas/internal/designs"
	"flowcanvas/pkg/logger"
)

// Handler carries the dependencies shared by all endpoint groups.
type Handler struct {
	service *designs.Service
	logger  logger.Logger
}

// New creates the handler set.
func New(service *designs.Service) *Handler {
	return &Handler{
		service: service,
		logger:  logger.New("api"),
	}
}

// parsePagination reads page/page_size/sort query parameters.
func parsePagination(r *http.Request) common.PaginationRequest {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	p := common.PaginationRequest{
		Page:     page,
		PageSize: pageSize,
		SortBy:   q.Get("sort_by"),
		SortDir:  q.Get("sort_dir"),
	}
	p.Normalize()
	return p
}

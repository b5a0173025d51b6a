// Package common holds the response envelope, pagination types, and shared
// constants used by every API surface.
package common

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	ServiceAPI       = "api"
	ServiceScheduler = "scheduler"

	DefaultTimeout      = 30 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second

	DefaultPageSize = 20
	MaxPageSize     = 100

	HeaderRequestID   = "X-Request-ID"
	HeaderContentType = "Content-Type"

	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"

	MaxNameLength        = 100
	MaxDescriptionLength = 1000

	// Upper bound on import payloads.
	MaxImportSize = 5 * 1024 * 1024
)

// APIResponse is the uniform envelope for every API reply.
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Meta      any       `json:"meta,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries error details in a response.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewSuccessResponse builds a success envelope.
func NewSuccessResponse(data any) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorResponse builds a failure envelope.
func NewErrorResponse(apiErr *APIError) *APIResponse {
	return &APIResponse{
		Success:   false,
		Error:     apiErr,
		Timestamp: time.Now().UTC(),
	}
}

// PaginationRequest captures list query parameters.
type PaginationRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	SortBy   string `json:"sort_by"`
	SortDir  string `json:"sort_dir"`
}

// Normalize clamps page and page size into their allowed ranges.
func (p *PaginationRequest) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.SortDir != "asc" && p.SortDir != "desc" {
		p.SortDir = "desc"
	}
}

// GetOffset returns the row offset for the current page.
func (p *PaginationRequest) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// PaginationResponse describes the page returned alongside list items.
type PaginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPaginationResponse computes page bookkeeping from a total count.
func NewPaginationResponse(page, pageSize int, total int64) *PaginationResponse {
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return &PaginationResponse{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// GenerateID returns a new UUID string.
func GenerateID() string {
	return uuid.New().String()
}

type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
)

// GetRequestID extracts the request id from ctx, empty when absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

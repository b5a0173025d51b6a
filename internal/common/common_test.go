package common

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"flowcanvas/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       PaginationRequest
		page     int
		pageSize int
		sortDir  string
	}{
		{"zero values", PaginationRequest{}, 1, DefaultPageSize, "desc"},
		{"negative page", PaginationRequest{Page: -3, PageSize: 10}, 1, 10, "desc"},
		{"oversized page size", PaginationRequest{Page: 2, PageSize: 5000}, 2, MaxPageSize, "desc"},
		{"asc preserved", PaginationRequest{Page: 1, PageSize: 10, SortDir: "asc"}, 1, 10, "asc"},
		{"bogus sort dir", PaginationRequest{Page: 1, PageSize: 10, SortDir: "sideways"}, 1, 10, "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Normalize()
			assert.Equal(t, tt.page, tt.in.Page)
			assert.Equal(t, tt.pageSize, tt.in.PageSize)
			assert.Equal(t, tt.sortDir, tt.in.SortDir)
		})
	}
}

func TestPaginationOffset(t *testing.T) {
	p := PaginationRequest{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.GetOffset())
}

func TestNewPaginationResponse(t *testing.T) {
	meta := NewPaginationResponse(2, 10, 35)

	assert.Equal(t, 4, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	last := NewPaginationResponse(4, 10, 35)
	assert.False(t, last.HasNext)

	empty := NewPaginationResponse(1, 10, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestWriteErrorMapsStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/designs/x", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.NotFoundError(errors.CodeDesignNotFound, "design", "x"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), string(errors.CodeDesignNotFound))
}

func TestWriteErrorMasksUnknownErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error(),
		"raw error text must not leak to clients")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	body := bytes.NewReader([]byte(`{"name":"ok","revision":7}`))
	req := httptest.NewRequest(http.MethodPost, "/", body)

	err := DecodeJSON(req, &dst)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	var dst struct{}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))

	err := DecodeJSON(req, &dst)
	require.Error(t, err)
	assert.Equal(t, errors.CodeMissingField, errors.GetAppError(err).Code)
}

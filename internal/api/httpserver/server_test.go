package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowcanvas/internal/common"
	"flowcanvas/internal/config"
	"flowcanvas/internal/designs"
	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success   bool             `json:"success"`
	Data      json.RawMessage  `json:"data"`
	Error     *common.APIError `json:"error"`
	Meta      *json.RawMessage `json:"meta"`
	RequestID string           `json:"request_id"`
}

func testRouter(t *testing.T) (chi.Router, *designs.MemoryRepository) {
	t.Helper()

	repo := designs.NewMemoryRepository()
	engine := designs.NewDefaultEngine(repo, designs.DefaultRegistry(), 5*time.Second)
	service := designs.NewService(repo, nil, engine, nil, &config.DesignerConfig{
		ExecutionTimeout:  5 * time.Second,
		MaxNodesPerDesign: 500,
		RecentRunsInStats: 10,
	})

	cfg := &config.Config{
		API: &config.APIConfig{RequestTimeout: 30 * time.Second},
	}
	return buildRouter(cfg, service, nil, nil, "test", logger.New("test")), repo
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	env := &envelope{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), env)
	}
	return rec, env
}

func seedRunnableDesign(t *testing.T, repo *designs.MemoryRepository) *designs.Design {
	t.Helper()

	design := designs.NewDesign("Seeded Flow", "", "ops", "user-1")
	design.Nodes = []designs.Node{
		{ID: "start", Type: "trigger", Name: "Start"},
		{ID: "done", Type: "end", Name: "Done"},
	}
	design.Connections = []designs.Connection{
		{ID: "c1", SourceID: "start", TargetID: "done"},
	}
	design.RecomputeCounts()
	require.NoError(t, repo.CreateDesign(context.Background(), design))
	return design
}

func TestCreateDesignEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/designs",
		`{"name":"My Flow","description":"made over HTTP","created_by":"user-1"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var design designs.Design
	require.NoError(t, json.Unmarshal(env.Data, &design))
	assert.NotEmpty(t, design.ID)
	assert.Equal(t, "My Flow", design.Name)
	assert.Equal(t, designs.DesignStatusDraft, design.Status)
	assert.Equal(t, int64(1), design.Revision)
}

func TestCreateDesignValidationFailure(t *testing.T) {
	router, _ := testRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/designs", `{"name":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(errors.ErrorTypeValidation), env.Error.Type)
}

func TestCreateDesignRejectsUnknownFields(t *testing.T) {
	router, _ := testRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/designs",
		`{"name":"Sneaky","execution_count":9999}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(errors.CodeInvalidInput), env.Error.Code)
}

func TestGetDesignNotFound(t *testing.T) {
	router, _ := testRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/designs/no-such-id", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(errors.CodeDesignNotFound), env.Error.Code)
}

func TestListDesignsPagination(t *testing.T) {
	router, repo := testRouter(t)
	for i := 0; i < 3; i++ {
		seedRunnableDesign(t, repo)
	}

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/designs?page=1&page_size=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	var items []designs.Design
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)

	require.NotNil(t, env.Meta)
	var meta common.PaginationResponse
	require.NoError(t, json.Unmarshal(*env.Meta, &meta))
	assert.Equal(t, int64(3), meta.Total)
	assert.Equal(t, 2, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}

func TestValidateEndpointReportsViolations(t *testing.T) {
	router, repo := testRouter(t)

	empty := designs.NewDesign("Empty", "", "", "")
	require.NoError(t, repo.CreateDesign(context.Background(), empty))

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/designs/"+empty.ID+"/validate", nil)

	require.Equal(t, http.StatusOK, rec.Code, "validation outcome is payload, not status")
	require.True(t, env.Success)

	var result designs.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestExecuteEndpointAccepted(t *testing.T) {
	router, repo := testRouter(t)
	design := seedRunnableDesign(t, repo)

	rec, env := doRequest(t, router, http.MethodPost,
		"/api/v1/designs/"+design.ID+"/execute", `{"input_data":{"ticket":"T-1"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var execution designs.Execution
	require.NoError(t, json.Unmarshal(env.Data, &execution))
	require.NotEmpty(t, execution.ID)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		getRec, getEnv := doRequest(t, router, http.MethodGet, "/api/v1/executions/"+execution.ID, nil)
		require.Equal(t, http.StatusOK, getRec.Code)
		require.NoError(t, json.Unmarshal(getEnv.Data, &execution))
		if execution.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, designs.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "T-1", execution.OutputData["ticket"])
}

func TestVersionEndpoints(t *testing.T) {
	router, repo := testRouter(t)
	design := seedRunnableDesign(t, repo)

	rec, env := doRequest(t, router, http.MethodPost,
		"/api/v1/designs/"+design.ID+"/versions", `{"version_name":"v1","created_by":"user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var version designs.Version
	require.NoError(t, json.Unmarshal(env.Data, &version))
	require.NotEmpty(t, version.ID)
	assert.False(t, version.IsCurrent)

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/versions/"+version.ID+"/promote", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &version))
	assert.True(t, version.IsCurrent)

	rec, env = doRequest(t, router, http.MethodGet, "/api/v1/designs/"+design.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var versions []designs.Version
	require.NoError(t, json.Unmarshal(env.Data, &versions))
	assert.Len(t, versions, 1)
}

func TestExportImportEndpoints(t *testing.T) {
	router, repo := testRouter(t)
	design := seedRunnableDesign(t, repo)

	rec, _ := doRequest(t, router, http.MethodGet,
		"/api/v1/designs/"+design.ID+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), "format_version")

	importRec, importEnv := doRequest(t, router, http.MethodPost,
		"/api/v1/designs/import?created_by=importer", rec.Body.Bytes())
	require.Equal(t, http.StatusCreated, importRec.Code, importRec.Body.String())

	var imported designs.Design
	require.NoError(t, json.Unmarshal(importEnv.Data, &imported))
	assert.NotEqual(t, design.ID, imported.ID)
	assert.Equal(t, design.Name, imported.Name)
	assert.Equal(t, 2, imported.NodeCount)
}

func TestDeleteDesignEndpoint(t *testing.T) {
	router, repo := testRouter(t)
	design := seedRunnableDesign(t, repo)

	rec, env := doRequest(t, router, http.MethodDelete, "/api/v1/designs/"+design.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/designs/"+design.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndVersionEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, true, health["healthy"])

	rec, env = doRequest(t, router, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "flowcanvas", info["service"])
	assert.Equal(t, "test", info["version"])
}

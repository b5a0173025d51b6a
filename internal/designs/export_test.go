package designs

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"flowcanvas/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() *Design {
	design := NewDesign("Export Me", "round trips", "ops", "user-1")
	design.Nodes = []Node{
		{ID: "start", Type: "trigger", Name: "Start", Position: Position{X: 1, Y: 2}},
		{ID: "fetch", Type: "http_request", Name: "Fetch", Position: Position{X: 100.5, Y: -3}, Config: map[string]any{
			"url":     "https://example.com",
			"method":  "GET",
			"retries": 3.0,
			"secure":  true,
			"headers": map[string]any{"X-Env": "test"},
		}},
		{ID: "done", Type: "end", Name: "Done"},
	}
	design.Connections = []Connection{
		{ID: "c1", SourceID: "start", TargetID: "fetch", SourcePort: "out", Label: "go"},
		{ID: "c2", SourceID: "fetch", TargetID: "done", Type: "success"},
	}
	design.CanvasConfig = map[string]any{"zoom": 1.25, "grid": true}
	return design
}

func TestExportImportRoundTripJSON(t *testing.T) {
	design := exportFixture()

	data, err := EncodeDesign(design, FormatJSON)
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, 1.0, envelope["format_version"])

	imported, err := ParseImport(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, design.Name, imported.Name)
	assert.Equal(t, design.Description, imported.Description)
	assert.Equal(t, design.Category, imported.Category)
	require.Len(t, imported.Nodes, 3)
	assert.Equal(t, design.Nodes[1].Config, imported.Nodes[1].Config)
	assert.Equal(t, design.Connections, imported.Connections)
	assert.Equal(t, design.CanvasConfig, imported.CanvasConfig)
}

func TestExportImportRoundTripXML(t *testing.T) {
	design := exportFixture()

	data, err := EncodeDesign(design, FormatXML)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	imported, err := ParseImport(data, FormatXML)
	require.NoError(t, err)

	assert.Equal(t, design.Name, imported.Name)
	require.Len(t, imported.Nodes, 3)

	fetch := imported.Nodes[1]
	assert.Equal(t, Position{X: 100.5, Y: -3}, fetch.Position)
	// Config values keep their types across the XML round trip.
	assert.Equal(t, 3.0, fetch.Config["retries"])
	assert.Equal(t, true, fetch.Config["secure"])
	assert.Equal(t, map[string]any{"X-Env": "test"}, fetch.Config["headers"])

	assert.Equal(t, design.Connections, imported.Connections)
	assert.Equal(t, design.CanvasConfig, imported.CanvasConfig)
}

func TestParseImportSniffsFormat(t *testing.T) {
	design := exportFixture()

	jsonData, err := EncodeDesign(design, FormatJSON)
	require.NoError(t, err)
	xmlData, err := EncodeDesign(design, FormatXML)
	require.NoError(t, err)

	fromJSON, err := ParseImport(jsonData, "")
	require.NoError(t, err)
	fromXML, err := ParseImport(xmlData, "")
	require.NoError(t, err)

	assert.Equal(t, fromJSON.Name, fromXML.Name)
	assert.Len(t, fromXML.Nodes, 3)
}

func TestParseImportRejectsBadPayloads(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ParseImport(nil, FormatJSON)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseImport([]byte("{nope"), FormatJSON)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := ParseImport([]byte("<design><broken"), FormatXML)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := ParseImport([]byte(`{"design":{"nodes":[]}}`), FormatJSON)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := ParseImport([]byte("{}"), "yaml")
		require.Error(t, err)
	})
}

func TestEncodeDesignUnknownFormat(t *testing.T) {
	_, err := EncodeDesign(exportFixture(), "yaml")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/json", ContentTypeFor(FormatJSON))
	assert.Equal(t, "application/json", ContentTypeFor(""))
	assert.Equal(t, "application/xml", ContentTypeFor(FormatXML))
}

func TestServiceExportImport(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	design := exportFixture()
	require.NoError(t, repo.CreateDesign(ctx, design))

	data, contentType, err := s.ExportDesign(ctx, design.ID, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	imported, err := s.ImportDesign(ctx, data, "", "importer")
	require.NoError(t, err)
	assert.NotEqual(t, design.ID, imported.ID, "import mints a fresh id")
	assert.Equal(t, design.Name, imported.Name)
	assert.Len(t, imported.Nodes, 3)
	assert.Equal(t, 3, imported.NodeCount)
	assert.Equal(t, DesignStatusDraft, imported.Status)
	assert.Equal(t, "importer", imported.CreatedBy)

	stored, err := s.GetDesign(ctx, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, imported.Nodes, stored.Nodes)
}

func TestImportInvalidGraphCreatesNothing(t *testing.T) {
	s, repo := newTestService(t)
	ctx := context.Background()

	payload := `{"design":{"name":"Broken","nodes":[{"node_id":"a","node_type":"warp"}],"connections":[{"connection_id":"c1","source_id":"a","target_id":"ghost"}],"canvas_config":{}}}`

	filter := &DesignFilter{}
	filter.Normalize()
	_, before, err := repo.ListDesigns(ctx, filter)
	require.NoError(t, err)

	_, err = s.ImportDesign(ctx, []byte(payload), FormatJSON, "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	violations, ok := errors.GetAppError(err).Context["errors"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 2, "all violations reported at once")

	_, after, err := repo.ListDesigns(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, before, after, "invalid imports must not create designs")
}

func TestEncodeXMLDeterministic(t *testing.T) {
	design := exportFixture()
	data1, err := EncodeDesign(design, FormatXML)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	data2, err := EncodeDesign(design, FormatXML)
	require.NoError(t, err)

	assert.Equal(t, data1, data2, "XML export is deterministic for the same graph")
}

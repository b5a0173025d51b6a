package designs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGraph() ([]Node, []Connection) {
	nodes := []Node{
		{ID: "start", Type: "trigger", Name: "Start"},
		{ID: "fetch", Type: "http_request", Name: "Fetch", Config: map[string]any{
			"url": "https://example.com", "method": "GET",
		}},
		{ID: "done", Type: "end", Name: "Done"},
	}
	connections := []Connection{
		{ID: "c1", SourceID: "start", TargetID: "fetch"},
		{ID: "c2", SourceID: "fetch", TargetID: "done"},
	}
	return nodes, connections
}

func TestValidateGraphValid(t *testing.T) {
	v := NewGraphValidator(nil)
	nodes, connections := validGraph()

	result := v.ValidateGraph(nodes, connections)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Errors)
}

func TestValidateGraphAccumulatesAllViolations(t *testing.T) {
	v := NewGraphValidator(nil)
	nodes := []Node{
		{ID: "a", Type: "warp"},
		{ID: "a", Type: "action"},
		{ID: "b", Type: "http_request", Config: map[string]any{}},
	}
	connections := []Connection{
		{ID: "c1", SourceID: "a", TargetID: "ghost"},
		{ID: "c1", SourceID: "b", TargetID: "a"},
	}

	result := v.ValidateGraph(nodes, connections)

	require.False(t, result.Valid)
	// duplicate node id, unknown type, two missing config keys, duplicate
	// connection id, missing target, no entry node
	assert.GreaterOrEqual(t, len(result.Errors), 6)
	assert.Contains(t, result.Errors, `duplicate node id "a"`)
	assert.Contains(t, result.Errors, `node "a" has unknown type "warp"`)
	assert.Contains(t, result.Errors, `duplicate connection id "c1"`)
	assert.Contains(t, result.Errors, `connection "c1" references missing target node "ghost"`)
}

func TestValidateGraphMissingRequiredConfig(t *testing.T) {
	v := NewGraphValidator(nil)
	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "fetch", Type: "http_request", Config: map[string]any{"url": "https://example.com"}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "fetch"}}

	result := v.ValidateGraph(nodes, connections)

	require.False(t, result.Valid)
	assert.Contains(t, result.Errors, `node "fetch" (http_request) is missing required config key "method"`)
}

func TestValidateGraphEntryNode(t *testing.T) {
	v := NewGraphValidator(nil)

	t.Run("no entry typed node", func(t *testing.T) {
		nodes := []Node{{ID: "a", Type: "action"}}
		result := v.ValidateGraph(nodes, nil)
		require.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "no entry node")
	})

	t.Run("entry node with incoming edge does not count", func(t *testing.T) {
		nodes := []Node{
			{ID: "a", Type: "trigger"},
			{ID: "b", Type: "action"},
		}
		connections := []Connection{{ID: "c1", SourceID: "b", TargetID: "a"}}
		result := v.ValidateGraph(nodes, connections)
		require.False(t, result.Valid)
	})

	t.Run("empty graph has no entry point", func(t *testing.T) {
		result := v.ValidateGraph(nil, nil)
		require.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "no entry node")
	})
}

func TestValidateGraphSelfLoop(t *testing.T) {
	v := NewGraphValidator(nil)

	t.Run("rejected on plain nodes", func(t *testing.T) {
		nodes := []Node{
			{ID: "start", Type: "trigger"},
			{ID: "a", Type: "action"},
		}
		connections := []Connection{
			{ID: "c1", SourceID: "start", TargetID: "a"},
			{ID: "c2", SourceID: "a", TargetID: "a"},
		}
		result := v.ValidateGraph(nodes, connections)
		require.False(t, result.Valid)
		assert.Contains(t, result.Errors, `connection "c2" loops node "a" onto itself`)
	})

	t.Run("allowed on loop nodes", func(t *testing.T) {
		nodes := []Node{
			{ID: "start", Type: "trigger"},
			{ID: "l", Type: "loop", Config: map[string]any{"items": []any{}}},
		}
		connections := []Connection{
			{ID: "c1", SourceID: "start", TargetID: "l"},
			{ID: "c2", SourceID: "l", TargetID: "l"},
		}
		result := v.ValidateGraph(nodes, connections)
		assert.True(t, result.Valid, "violations: %v", result.Errors)
	})
}

func TestValidateGraphCycles(t *testing.T) {
	v := NewGraphValidator(nil)

	t.Run("cycle without loop node rejected", func(t *testing.T) {
		nodes := []Node{
			{ID: "start", Type: "trigger"},
			{ID: "a", Type: "action"},
			{ID: "b", Type: "action"},
		}
		connections := []Connection{
			{ID: "c1", SourceID: "start", TargetID: "a"},
			{ID: "c2", SourceID: "a", TargetID: "b"},
			{ID: "c3", SourceID: "b", TargetID: "a"},
		}
		result := v.ValidateGraph(nodes, connections)
		require.False(t, result.Valid)
		found := false
		for _, msg := range result.Errors {
			if strings.Contains(msg, "cycle detected") {
				found = true
			}
		}
		assert.True(t, found, "expected a cycle violation, got %v", result.Errors)
	})

	t.Run("cycle through loop node allowed", func(t *testing.T) {
		nodes := []Node{
			{ID: "start", Type: "trigger"},
			{ID: "l", Type: "loop", Config: map[string]any{"items": []any{}}},
			{ID: "a", Type: "action"},
		}
		connections := []Connection{
			{ID: "c1", SourceID: "start", TargetID: "l"},
			{ID: "c2", SourceID: "l", TargetID: "a"},
			{ID: "c3", SourceID: "a", TargetID: "l"},
		}
		result := v.ValidateGraph(nodes, connections)
		assert.True(t, result.Valid, "violations: %v", result.Errors)
	})
}

func TestCheckKnownType(t *testing.T) {
	v := NewGraphValidator(nil)

	assert.NoError(t, v.CheckKnownType("trigger"))
	assert.NoError(t, v.CheckKnownType("http_request"))
	assert.Error(t, v.CheckKnownType("warp_drive"))
}

func TestRegistryCustomTypes(t *testing.T) {
	registry := NewNodeTypeRegistry()
	registry.Register(NodeTypeSpec{Type: "ingest", DisplayName: "Ingest", IsEntry: true})
	registry.Register(NodeTypeSpec{Type: "sink", DisplayName: "Sink"})
	v := NewGraphValidator(registry)

	nodes := []Node{
		{ID: "in", Type: "ingest"},
		{ID: "out", Type: "sink"},
	}
	connections := []Connection{{ID: "c1", SourceID: "in", TargetID: "out"}}

	result := v.ValidateGraph(nodes, connections)
	assert.True(t, result.Valid, "violations: %v", result.Errors)

	result = v.ValidateGraph([]Node{{ID: "x", Type: "trigger"}}, nil)
	assert.False(t, result.Valid, "default types must not leak into a custom registry")
}

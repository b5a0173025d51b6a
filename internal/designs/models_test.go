package designs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDesign(t *testing.T) {
	design := NewDesign("Order Flow", "processes orders", "sales", "user-1")

	assert.NotEmpty(t, design.ID)
	assert.Equal(t, DesignStatusDraft, design.Status)
	assert.Equal(t, int64(1), design.Revision)
	assert.Empty(t, design.Nodes)
	assert.Empty(t, design.Connections)
	assert.NotNil(t, design.CanvasConfig)
	assert.Nil(t, design.CurrentVersionID)
	assert.Zero(t, design.ExecutionCount)
	assert.Zero(t, design.SuccessRate)
}

func TestRemoveNodeCascadesConnections(t *testing.T) {
	design := NewDesign("d", "", "", "")
	design.Nodes = []Node{
		{ID: "a", Type: "trigger"},
		{ID: "b", Type: "action"},
		{ID: "c", Type: "action"},
	}
	design.Connections = []Connection{
		{ID: "c1", SourceID: "a", TargetID: "b"},
		{ID: "c2", SourceID: "b", TargetID: "c"},
		{ID: "c3", SourceID: "a", TargetID: "c"},
	}

	require.True(t, design.RemoveNode("b"))

	assert.Nil(t, design.GetNode("b"))
	assert.Len(t, design.Connections, 1)
	assert.Equal(t, "c3", design.Connections[0].ID)

	assert.False(t, design.RemoveNode("missing"))
}

func TestCloneGraphIsDeep(t *testing.T) {
	design := NewDesign("d", "", "", "")
	design.Nodes = []Node{
		{ID: "a", Type: "http_request", Config: map[string]any{
			"url":     "https://example.com",
			"headers": map[string]any{"X-Key": "v"},
		}},
	}
	design.CanvasConfig = map[string]any{"zoom": 1.5}

	nodes, _, canvas := design.CloneGraph()
	nodes[0].Config["url"] = "mutated"
	nodes[0].Config["headers"].(map[string]any)["X-Key"] = "mutated"
	canvas["zoom"] = 99.0

	assert.Equal(t, "https://example.com", design.Nodes[0].Config["url"])
	assert.Equal(t, "v", design.Nodes[0].Config["headers"].(map[string]any)["X-Key"])
	assert.Equal(t, 1.5, design.CanvasConfig["zoom"])
}

func TestVersionSnapshotIsImmutable(t *testing.T) {
	design := NewDesign("d", "", "", "")
	design.Nodes = []Node{{ID: "a", Type: "trigger", Config: map[string]any{"k": "v"}}}
	design.Connections = []Connection{{ID: "c1", SourceID: "a", TargetID: "a"}}

	version := NewVersion(design, "v1", "", nil, "user-1")

	design.Nodes[0].Config["k"] = "changed"
	design.Nodes[0].Name = "renamed"
	design.Connections[0].Label = "changed"

	assert.Equal(t, "v", version.NodesSnapshot[0].Config["k"])
	assert.Empty(t, version.NodesSnapshot[0].Name)
	assert.Empty(t, version.ConnectionsSnapshot[0].Label)
	assert.False(t, version.IsCurrent)
}

func TestDuplicateResetsLineage(t *testing.T) {
	design := NewDesign("original", "desc", "cat", "user-1")
	design.Nodes = []Node{{ID: "a", Type: "trigger", Config: map[string]any{}}}
	design.ExecutionCount = 42
	design.SuccessRate = 0.9
	versionID := "v-1"
	design.CurrentVersionID = &versionID
	design.RecomputeCounts()

	dup := design.Duplicate("copy", "user-2")

	assert.NotEqual(t, design.ID, dup.ID)
	assert.Equal(t, "copy", dup.Name)
	assert.Equal(t, DesignStatusDraft, dup.Status)
	assert.Nil(t, dup.CurrentVersionID)
	assert.Zero(t, dup.ExecutionCount)
	assert.Zero(t, dup.SuccessRate)
	assert.Equal(t, 1, dup.NodeCount)

	dup.Nodes[0].Config["k"] = "v"
	assert.NotContains(t, design.Nodes[0].Config, "k")
}

func TestExecutionTransitions(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		exec := NewExecution("d-1", nil, map[string]any{"in": 1.0})
		assert.Equal(t, ExecutionStatusPending, exec.Status)
		assert.False(t, exec.Status.IsTerminal())

		exec.MarkRunning()
		node := "n1"
		exec.CurrentNode = &node
		assert.Equal(t, ExecutionStatusRunning, exec.Status)

		exec.MarkCompleted(map[string]any{"out": 2.0})
		assert.Equal(t, ExecutionStatusCompleted, exec.Status)
		assert.True(t, exec.Status.IsTerminal())
		assert.True(t, exec.IsSuccessful())
		require.NotNil(t, exec.CompletedAt)
		require.NotNil(t, exec.DurationMS)
		assert.Nil(t, exec.CurrentNode)
	})

	t.Run("failed", func(t *testing.T) {
		exec := NewExecution("d-1", nil, nil)
		exec.MarkRunning()
		exec.MarkFailed("node blew up")

		assert.Equal(t, ExecutionStatusFailed, exec.Status)
		assert.False(t, exec.IsSuccessful())
		require.NotNil(t, exec.ErrorMsg)
		assert.Equal(t, "node blew up", *exec.ErrorMsg)
		assert.NotNil(t, exec.CompletedAt)
	})

	t.Run("cancelled", func(t *testing.T) {
		exec := NewExecution("d-1", nil, nil)
		exec.MarkRunning()
		exec.MarkCancelled()

		assert.Equal(t, ExecutionStatusCancelled, exec.Status)
		assert.True(t, exec.Status.IsTerminal())
		assert.False(t, exec.IsSuccessful())
	})
}

func TestAppendLogKeepsOrder(t *testing.T) {
	exec := NewExecution("d-1", nil, nil)
	node := "n1"
	exec.AppendLog(LogLevelInfo, "first", nil)
	exec.AppendLog(LogLevelWarn, "second", &node)
	exec.AppendLog(LogLevelError, "third", nil)

	require.Len(t, exec.Logs, 3)
	assert.Equal(t, "first", exec.Logs[0].Message)
	assert.Equal(t, "second", exec.Logs[1].Message)
	assert.Equal(t, "third", exec.Logs[2].Message)
	assert.Equal(t, &node, exec.Logs[1].NodeID)
}

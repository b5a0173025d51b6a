package designs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedExecution(t *testing.T, repo *MemoryRepository, designID string) *Execution {
	t.Helper()
	execution := NewExecution(designID, nil, map[string]any{"seed": true})
	require.NoError(t, repo.CreateExecution(context.Background(), execution))
	return execution
}

func seedDesign(t *testing.T, repo *MemoryRepository) *Design {
	t.Helper()
	design := NewDesign("engine test", "", "", "")
	require.NoError(t, repo.CreateDesign(context.Background(), design))
	return design
}

func TestEngineTraversalOrder(t *testing.T) {
	engine := NewDefaultEngine(NewMemoryRepository(), nil, time.Second)

	nodes := []Node{
		{ID: "end", Type: "end"},
		{ID: "mid", Type: "action"},
		{ID: "start", Type: "trigger"},
		{ID: "island", Type: "action"},
	}
	connections := []Connection{
		{ID: "c1", SourceID: "start", TargetID: "mid"},
		{ID: "c2", SourceID: "mid", TargetID: "end"},
	}

	order := engine.traversalOrder(nodes, connections)
	require.Len(t, order, 3, "unreachable nodes are skipped")
	assert.Equal(t, "start", order[0].ID)
	assert.Equal(t, "mid", order[1].ID)
	assert.Equal(t, "end", order[2].ID)
}

func TestEngineRunsToCompletion(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 5*time.Second)
	design := seedDesign(t, repo)
	execution := seedExecution(t, repo, design.ID)

	nodes := []Node{
		{ID: "start", Type: "trigger", Name: "Start"},
		{ID: "note", Type: "notify", Name: "Note", Config: map[string]any{
			"channel": "ops", "message": "done",
		}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "note"}}

	engine.Execute(context.Background(), execution, nodes, connections)

	assert.Equal(t, ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, true, execution.OutputData["seed"])
	assert.Equal(t, "note", execution.Context["last_node"])

	stored, err := repo.GetExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusCompleted, stored.Status)
}

func TestEngineCustomStep(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 5*time.Second)
	engine.RegisterStep("action", func(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
		return map[string]any{"doubled": input["value"].(float64) * 2}, nil
	})

	design := seedDesign(t, repo)
	execution := NewExecution(design.ID, nil, map[string]any{"value": 21.0})
	require.NoError(t, repo.CreateExecution(context.Background(), execution))

	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "calc", Type: "action"},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "calc"}}

	engine.Execute(context.Background(), execution, nodes, connections)

	assert.Equal(t, ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, 42.0, execution.OutputData["doubled"])
}

func TestEngineStepFailure(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 5*time.Second)
	design := seedDesign(t, repo)
	execution := seedExecution(t, repo, design.ID)

	// A delay node without its duration fails mid-run.
	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "wait", Type: "delay", Config: map[string]any{}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "wait"}}

	engine.Execute(context.Background(), execution, nodes, connections)

	assert.Equal(t, ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.ErrorMsg)
	assert.Contains(t, *execution.ErrorMsg, "duration")

	var sawNodeError bool
	for _, entry := range execution.Logs {
		if entry.Level == LogLevelError && entry.NodeID != nil && *entry.NodeID == "wait" {
			sawNodeError = true
		}
	}
	assert.True(t, sawNodeError, "failure must be logged against the failing node")
}

func TestEngineTimeout(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 50*time.Millisecond)
	design := seedDesign(t, repo)
	execution := seedExecution(t, repo, design.ID)

	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "wait", Type: "delay", Config: map[string]any{"duration": "5s"}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "wait"}}

	engine.Execute(context.Background(), execution, nodes, connections)

	assert.Equal(t, ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.ErrorMsg)
	assert.Equal(t, "execution timed out", *execution.ErrorMsg)
}

func TestEngineCancel(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 30*time.Second)
	design := seedDesign(t, repo)
	execution := seedExecution(t, repo, design.ID)

	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "wait", Type: "delay", Config: map[string]any{"duration": "5s"}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "wait"}}

	done := make(chan struct{})
	go func() {
		engine.Execute(context.Background(), execution, nodes, connections)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if engine.Cancel(execution.ID) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
	assert.Equal(t, ExecutionStatusCancelled, execution.Status)

	assert.False(t, engine.Cancel(execution.ID), "finished runs are no longer cancellable")
}

// TestEngineCancelBeforePickup cancels between Register and Execute. The run
// must settle as cancelled without any node ever starting.
func TestEngineCancelBeforePickup(t *testing.T) {
	repo := NewMemoryRepository()
	engine := NewDefaultEngine(repo, nil, 30*time.Second)
	design := seedDesign(t, repo)
	execution := seedExecution(t, repo, design.ID)

	nodes := []Node{
		{ID: "start", Type: "trigger"},
		{ID: "wait", Type: "delay", Config: map[string]any{"duration": "5s"}},
	}
	connections := []Connection{{ID: "c1", SourceID: "start", TargetID: "wait"}}

	runCtx := engine.Register(execution.ID)
	require.True(t, engine.Cancel(execution.ID))

	engine.Execute(runCtx, execution, nodes, connections)

	assert.Equal(t, ExecutionStatusCancelled, execution.Status)
	for _, entry := range execution.Logs {
		assert.NotContains(t, entry.Message, "running node")
	}

	stored, err := repo.GetExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusCancelled, stored.Status)
}

func TestConditionStep(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		input    map[string]any
		expected bool
	}{
		{"literal true", "true", nil, true},
		{"literal false", "false", nil, false},
		{"input key true", "approved", map[string]any{"approved": true}, true},
		{"input key false", "approved", map[string]any{"approved": false}, false},
		{"input key absent", "approved", map[string]any{}, false},
		{"input key not boolean", "approved", map[string]any{"approved": "yes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &Node{ID: "cond", Type: "condition", Config: map[string]any{"expression": tt.expr}}
			out, err := conditionStep(context.Background(), NewExecution("d", nil, nil), node, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out["cond"])
		})
	}

	t.Run("missing expression", func(t *testing.T) {
		node := &Node{ID: "cond", Type: "condition", Config: map[string]any{}}
		_, err := conditionStep(context.Background(), NewExecution("d", nil, nil), node, nil)
		assert.Error(t, err)
	})
}

func TestDelayStepParsesDurations(t *testing.T) {
	exec := NewExecution("d", nil, nil)

	t.Run("string duration", func(t *testing.T) {
		node := &Node{ID: "w", Config: map[string]any{"duration": "1ms"}}
		_, err := delayStep(context.Background(), exec, node, nil)
		assert.NoError(t, err)
	})

	t.Run("numeric milliseconds", func(t *testing.T) {
		node := &Node{ID: "w", Config: map[string]any{"duration": 1.0}}
		_, err := delayStep(context.Background(), exec, node, nil)
		assert.NoError(t, err)
	})

	t.Run("garbage duration", func(t *testing.T) {
		node := &Node{ID: "w", Config: map[string]any{"duration": "soon"}}
		_, err := delayStep(context.Background(), exec, node, nil)
		assert.Error(t, err)
	})
}

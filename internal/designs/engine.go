package designs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"
	"flowcanvas/pkg/utils"
)

// Engine drives executions to a terminal state. Execute blocks until the run
// finishes; the service invokes it on its own goroutine. Register must be
// called before that goroutine launches so a cancel arriving in the window
// between acceptance and pickup still reaches the run. Cancel is advisory:
// the engine stops before the next node, but a run may already have finished.
type Engine interface {
	Register(executionID string) context.Context
	Execute(ctx context.Context, execution *Execution, nodes []Node, connections []Connection)
	Cancel(executionID string) bool
}

// StepFunc performs one node's work and returns its output payload.
type StepFunc func(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error)

// DefaultEngine walks the graph breadth-first from the entry nodes,
// persisting status and log updates through the repository as it goes.
type DefaultEngine struct {
	repo     Repository
	registry *NodeTypeRegistry
	logger   logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc

	steps map[string]StepFunc
}

// NewDefaultEngine creates the engine. timeout bounds a whole run.
func NewDefaultEngine(repo Repository, registry *NodeTypeRegistry, timeout time.Duration) *DefaultEngine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	e := &DefaultEngine{
		repo:     repo,
		registry: registry,
		logger:   logger.New("engine"),
		metrics:  metrics.GetGlobal(),
		timeout:  timeout,
		running:  make(map[string]context.CancelFunc),
		steps:    make(map[string]StepFunc),
	}
	e.registerBuiltinSteps()
	return e
}

// RegisterStep installs or replaces the handler for a node type.
func (e *DefaultEngine) RegisterStep(nodeType string, fn StepFunc) {
	e.steps[nodeType] = fn
}

// Cancel stops a run before its next node. Returns false when the engine is
// not currently driving that execution.
func (e *DefaultEngine) Cancel(executionID string) bool {
	e.mu.Lock()
	cancel, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Register makes a run cancellable before its goroutine starts. The returned
// context must be handed to Execute; a Cancel landing between Register and
// Execute stops the run before its first node.
func (e *DefaultEngine) Register(executionID string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.running[executionID] = cancel
	e.mu.Unlock()
	return ctx
}

// Execute runs the graph to completion. Engine failures are recorded on the
// execution record, never returned: a failed run is a valid terminal outcome.
func (e *DefaultEngine) Execute(ctx context.Context, execution *Execution, nodes []Node, connections []Connection) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.mu.Lock()
	// Keep a Register'ed cancel func in place; it chains into runCtx.
	if _, ok := e.running[execution.ID]; !ok {
		e.running[execution.ID] = cancel
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, execution.ID)
		e.mu.Unlock()
	}()

	e.metrics.ExecutionsActive.Inc()
	defer e.metrics.ExecutionsActive.Dec()

	select {
	case <-runCtx.Done():
		e.finishCancelled(runCtx, execution)
		return
	default:
	}

	execution.MarkRunning()
	execution.AppendLog(LogLevelInfo, "execution started", nil)
	e.persist(execution)

	order := e.traversalOrder(nodes, connections)
	if len(order) == 0 && len(nodes) > 0 {
		e.finishFailed(execution, "graph has no entry node")
		return
	}

	data := utils.CloneMap(execution.InputData)
	if data == nil {
		data = map[string]any{}
	}

	for _, node := range order {
		select {
		case <-runCtx.Done():
			e.finishCancelled(runCtx, execution)
			return
		default:
		}

		nodeID := node.ID
		execution.CurrentNode = &nodeID
		execution.AppendLog(LogLevelInfo, fmt.Sprintf("running node %s (%s)", node.Name, node.Type), &nodeID)
		e.persist(execution)

		output, err := e.runStep(runCtx, execution, node, data)
		if err != nil {
			if runCtx.Err() != nil {
				e.finishCancelled(runCtx, execution)
				return
			}
			execution.AppendLog(LogLevelError, fmt.Sprintf("node %s failed: %v", node.Name, err), &nodeID)
			e.finishFailed(execution, errors.GetAppError(err).Message)
			return
		}

		for k, v := range output {
			data[k] = v
		}
		execution.Context["last_node"] = nodeID
	}

	execution.AppendLog(LogLevelInfo, "execution completed", nil)
	execution.MarkCompleted(data)
	e.persist(execution)
	e.recordTerminal(execution)
}

func (e *DefaultEngine) runStep(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
	fn, ok := e.steps[node.Type]
	if !ok {
		fn = passthroughStep
	}
	return fn(ctx, execution, node, input)
}

func (e *DefaultEngine) finishFailed(execution *Execution, message string) {
	execution.MarkFailed(message)
	e.persist(execution)
	e.recordTerminal(execution)
	e.logger.Warn("Execution failed",
		"execution_id", execution.ExecutionID,
		"design_id", execution.DesignID,
		"error", message,
	)
}

func (e *DefaultEngine) finishCancelled(ctx context.Context, execution *Execution) {
	if ctx.Err() == context.DeadlineExceeded {
		execution.AppendLog(LogLevelError, "execution timed out", nil)
		execution.MarkFailed("execution timed out")
	} else {
		execution.AppendLog(LogLevelWarn, "execution cancelled", nil)
		execution.MarkCancelled()
	}
	e.persist(execution)
	e.recordTerminal(execution)
}

func (e *DefaultEngine) recordTerminal(execution *Execution) {
	if execution.DurationMS != nil {
		e.metrics.RecordExecution(string(execution.Status),
			time.Duration(*execution.DurationMS)*time.Millisecond)
	}
}

func (e *DefaultEngine) persist(execution *Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.UpdateExecution(ctx, execution); err != nil {
		e.logger.Error("Failed to persist execution state",
			"execution_id", execution.ExecutionID,
			"status", execution.Status,
			"error", err,
		)
	}
}

// traversalOrder returns nodes breadth-first from the entry nodes, visiting
// each node once. Nodes unreachable from any entry are skipped.
func (e *DefaultEngine) traversalOrder(nodes []Node, connections []Connection) []*Node {
	nodeByID := make(map[string]*Node, len(nodes))
	incoming := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string)

	for i := range nodes {
		nodeByID[nodes[i].ID] = &nodes[i]
	}
	for i := range connections {
		conn := &connections[i]
		if _, ok := nodeByID[conn.SourceID]; !ok {
			continue
		}
		if _, ok := nodeByID[conn.TargetID]; !ok {
			continue
		}
		adjacency[conn.SourceID] = append(adjacency[conn.SourceID], conn.TargetID)
		incoming[conn.TargetID]++
	}

	var queue []string
	for i := range nodes {
		node := &nodes[i]
		spec, known := e.registry.Get(node.Type)
		if known && spec.IsEntry && incoming[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	visited := make(map[string]bool, len(nodes))
	var order []*Node
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, nodeByID[id])
		queue = append(queue, adjacency[id]...)
	}
	return order
}

func (e *DefaultEngine) registerBuiltinSteps() {
	e.steps["delay"] = delayStep
	e.steps["condition"] = conditionStep
	e.steps["notify"] = notifyStep
}

func passthroughStep(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
	return map[string]any{node.ID: "ok"}, nil
}

// delayStep sleeps for the configured duration, clamped to 10s, honoring
// cancellation.
func delayStep(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
	raw, ok := node.Config["duration"]
	if !ok {
		return nil, errors.EngineError("delay node missing duration")
	}

	var wait time.Duration
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.EngineError("invalid delay duration: " + v)
		}
		wait = parsed
	case float64:
		wait = time.Duration(v) * time.Millisecond
	default:
		return nil, errors.EngineError("invalid delay duration type")
	}
	if wait > 10*time.Second {
		wait = 10 * time.Second
	}

	select {
	case <-time.After(wait):
		return map[string]any{node.ID: "waited"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// conditionStep evaluates the configured expression against the run data.
// Only boolean literals and input-key lookups are supported.
func conditionStep(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
	expr, ok := node.Config["expression"].(string)
	if !ok {
		return nil, errors.EngineError("condition node missing expression")
	}

	result := false
	switch expr {
	case "true":
		result = true
	case "false":
		result = false
	default:
		if v, present := input[expr]; present {
			b, isBool := v.(bool)
			result = isBool && b
		}
	}
	return map[string]any{node.ID: result}, nil
}

func notifyStep(ctx context.Context, execution *Execution, node *Node, input map[string]any) (map[string]any, error) {
	channel, _ := node.Config["channel"].(string)
	message, _ := node.Config["message"].(string)
	nodeID := node.ID
	execution.AppendLog(LogLevelInfo, fmt.Sprintf("notify %s: %s", channel, message), &nodeID)
	return map[string]any{node.ID: "notified"}, nil
}

package designs

import (
	"fmt"

	"flowcanvas/pkg/errors"
)

// Validator checks a design's graph-level invariants.
type Validator interface {
	ValidateGraph(nodes []Node, connections []Connection) *ValidationResult
}

// GraphValidator is the default Validator. Every check accumulates
// violations; callers always see the full list.
type GraphValidator struct {
	registry *NodeTypeRegistry
}

// NewGraphValidator creates a validator over the given type registry.
func NewGraphValidator(registry *NodeTypeRegistry) *GraphValidator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &GraphValidator{registry: registry}
}

// ValidateGraph runs every structural check against the graph.
func (v *GraphValidator) ValidateGraph(nodes []Node, connections []Connection) *ValidationResult {
	verrs := errors.NewValidationErrors()

	nodeByID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		if _, seen := nodeByID[node.ID]; seen {
			verrs.Add("duplicate node id %q", node.ID)
			continue
		}
		nodeByID[node.ID] = node
	}

	v.checkNodeTypes(nodes, verrs)
	v.checkConnections(connections, nodeByID, verrs)
	v.checkEntryNodes(nodes, connections, nodeByID, verrs)
	v.checkCycles(nodes, connections, nodeByID, verrs)

	result := &ValidationResult{Valid: !verrs.HasErrors(), Errors: verrs.Violations}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	return result
}

func (v *GraphValidator) checkNodeTypes(nodes []Node, verrs *errors.ValidationErrors) {
	for i := range nodes {
		node := &nodes[i]

		spec, known := v.registry.Get(node.Type)
		if !known {
			verrs.Add("node %q has unknown type %q", node.ID, node.Type)
			continue
		}

		for _, key := range spec.RequiredConfig {
			if _, ok := node.Config[key]; !ok {
				verrs.Add("node %q (%s) is missing required config key %q", node.ID, node.Type, key)
			}
		}
	}
}

func (v *GraphValidator) checkConnections(connections []Connection, nodeByID map[string]*Node, verrs *errors.ValidationErrors) {
	seen := make(map[string]bool, len(connections))
	for i := range connections {
		conn := &connections[i]

		if seen[conn.ID] {
			verrs.Add("duplicate connection id %q", conn.ID)
		}
		seen[conn.ID] = true

		if _, ok := nodeByID[conn.SourceID]; !ok {
			verrs.Add("connection %q references missing source node %q", conn.ID, conn.SourceID)
		}
		if _, ok := nodeByID[conn.TargetID]; !ok {
			verrs.Add("connection %q references missing target node %q", conn.ID, conn.TargetID)
		}
		if conn.SourceID == conn.TargetID {
			if node, ok := nodeByID[conn.SourceID]; ok {
				if spec, known := v.registry.Get(node.Type); !known || !spec.AllowsLoop {
					verrs.Add("connection %q loops node %q onto itself", conn.ID, conn.SourceID)
				}
			}
		}
	}
}

// checkEntryNodes requires at least one entry-typed node with no incoming
// edges; an empty graph is reported as having no entry point.
func (v *GraphValidator) checkEntryNodes(nodes []Node, connections []Connection, nodeByID map[string]*Node, verrs *errors.ValidationErrors) {
	incoming := make(map[string]int)
	for i := range connections {
		if _, ok := nodeByID[connections[i].TargetID]; ok {
			incoming[connections[i].TargetID]++
		}
	}

	for i := range nodes {
		node := &nodes[i]
		spec, known := v.registry.Get(node.Type)
		if known && spec.IsEntry && incoming[node.ID] == 0 {
			return
		}
	}

	verrs.Add("design has no entry node: at least one trigger/start node without incoming connections is required")
}

// checkCycles runs a DFS over the adjacency list; a back edge forms a cycle,
// which is only legal when some node on it permits loops.
func (v *GraphValidator) checkCycles(nodes []Node, connections []Connection, nodeByID map[string]*Node, verrs *errors.ValidationErrors) {
	adjacency := make(map[string][]string)
	for i := range connections {
		conn := &connections[i]
		if _, ok := nodeByID[conn.SourceID]; !ok {
			continue
		}
		if _, ok := nodeByID[conn.TargetID]; !ok {
			continue
		}
		adjacency[conn.SourceID] = append(adjacency[conn.SourceID], conn.TargetID)
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	reported := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, next := range adjacency[id] {
			if !visited[next] {
				visit(next)
			} else if onStack[next] {
				v.reportCycle(stack, next, nodeByID, reported, verrs)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for i := range nodes {
		if !visited[nodes[i].ID] {
			visit(nodes[i].ID)
		}
	}
}

// reportCycle extracts the cycle members from the DFS stack and records a
// violation unless one of them is loop-capable.
func (v *GraphValidator) reportCycle(stack []string, entry string, nodeByID map[string]*Node, reported map[string]bool, verrs *errors.ValidationErrors) {
	start := 0
	for i, id := range stack {
		if id == entry {
			start = i
			break
		}
	}
	cycle := stack[start:]

	for _, id := range cycle {
		if node, ok := nodeByID[id]; ok {
			if spec, known := v.registry.Get(node.Type); known && spec.AllowsLoop {
				return
			}
		}
	}

	if reported[entry] {
		return
	}
	reported[entry] = true
	verrs.Add("cycle detected through node %q without a loop-capable node", entry)
}

// CheckKnownType rejects node types absent from the registry. Required
// config keys are deliberately not enforced here: nodes are configured
// incrementally on the canvas and only ValidateGraph demands completeness.
func (v *GraphValidator) CheckKnownType(nodeType string) error {
	if _, known := v.registry.Get(nodeType); !known {
		return errors.ValidationError(errors.CodeUnknownNodeType,
			fmt.Sprintf("unknown node type %q", nodeType))
	}
	return nil
}

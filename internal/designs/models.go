// Package designs implements the workflow designer core: the design graph
// model, version snapshots, execution tracking, validation, and diffing.
package designs

import (
	"time"

	"flowcanvas/pkg/utils"
)

// DesignStatus is the lifecycle state of a workflow design.
type DesignStatus string

const (
	DesignStatusDraft     DesignStatus = "draft"
	DesignStatusPublished DesignStatus = "published"
	DesignStatusArchived  DesignStatus = "archived"
)

// ExecutionStatus is the state of one run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// ChangeKind classifies a version change entry.
type ChangeKind string

const (
	ChangeKindAdd    ChangeKind = "add"
	ChangeKindRemove ChangeKind = "remove"
	ChangeKindModify ChangeKind = "modify"
)

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step in a design graph. Config keys are interpreted by the
// node type's handler; required keys are declared in the type registry.
type Node struct {
	ID       string         `json:"node_id" db:"node_id"`
	Type     string         `json:"node_type" db:"node_type"`
	Name     string         `json:"name" db:"name"`
	Position Position       `json:"position" db:"position"`
	Config   map[string]any `json:"config" db:"config"`
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Config = utils.CloneMap(n.Config)
	return &clone
}

// Connection is a directed edge between two nodes of the same design.
type Connection struct {
	ID         string `json:"connection_id" db:"connection_id"`
	SourceID   string `json:"source_id" db:"source_id"`
	TargetID   string `json:"target_id" db:"target_id"`
	SourcePort string `json:"source_port,omitempty" db:"source_port"`
	TargetPort string `json:"target_port,omitempty" db:"target_port"`
	Type       string `json:"connection_type,omitempty" db:"connection_type"`
	Label      string `json:"label,omitempty" db:"label"`
}

// Clone copies the connection.
func (c *Connection) Clone() *Connection {
	clone := *c
	return &clone
}

// SameEndpoints reports whether two connections join the same ports of the
// same nodes. Used for the duplicate-edge policy.
func (c *Connection) SameEndpoints(other *Connection) bool {
	return c.SourceID == other.SourceID &&
		c.TargetID == other.TargetID &&
		c.SourcePort == other.SourcePort &&
		c.TargetPort == other.TargetPort
}

// Design is the versioned unit of work: a named graph plus canvas metadata.
// ExecutionCount, SuccessRate, NodeCount and ConnectionCount are derived and
// recomputed by the service, never accepted from callers.
type Design struct {
	ID               string         `json:"id" db:"id"`
	Name             string         `json:"name" db:"name" validate:"required,design_name"`
	Description      string         `json:"description" db:"description" validate:"max=1000"`
	Category         string         `json:"category,omitempty" db:"category"`
	Status           DesignStatus   `json:"status" db:"status"`
	Nodes            []Node         `json:"nodes" db:"nodes"`
	Connections      []Connection   `json:"connections" db:"connections"`
	CanvasConfig     map[string]any `json:"canvas_config" db:"canvas_config"`
	CurrentVersionID *string        `json:"current_version_id,omitempty" db:"current_version_id"`
	CreatedBy        string         `json:"created_by" db:"created_by"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`

	// Revision is the optimistic-concurrency counter; bumped on every save.
	Revision int64 `json:"revision" db:"revision"`

	ExecutionCount  int64   `json:"execution_count" db:"execution_count"`
	SuccessRate     float64 `json:"success_rate" db:"success_rate"`
	NodeCount       int     `json:"node_count" db:"node_count"`
	ConnectionCount int     `json:"connection_count" db:"connection_count"`
}

// NewDesign creates a draft design with an empty graph.
func NewDesign(name, description, category, createdBy string) *Design {
	now := time.Now().UTC()
	return &Design{
		ID:           utils.GenerateID(),
		Name:         name,
		Description:  description,
		Category:     category,
		Status:       DesignStatusDraft,
		Nodes:        []Node{},
		Connections:  []Connection{},
		CanvasConfig: map[string]any{},
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		Revision:     1,
	}
}

// GetNode returns the node with the given id, nil when absent.
func (d *Design) GetNode(nodeID string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == nodeID {
			return &d.Nodes[i]
		}
	}
	return nil
}

// GetConnection returns the connection with the given id, nil when absent.
func (d *Design) GetConnection(connectionID string) *Connection {
	for i := range d.Connections {
		if d.Connections[i].ID == connectionID {
			return &d.Connections[i]
		}
	}
	return nil
}

// RemoveNode deletes the node and every connection referencing it. Both
// removals happen on the in-memory graph, so a subsequent save persists them
// atomically. Returns false when the node does not exist.
func (d *Design) RemoveNode(nodeID string) bool {
	idx := -1
	for i := range d.Nodes {
		if d.Nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	d.Nodes = append(d.Nodes[:idx], d.Nodes[idx+1:]...)

	kept := d.Connections[:0]
	for _, conn := range d.Connections {
		if conn.SourceID != nodeID && conn.TargetID != nodeID {
			kept = append(kept, conn)
		}
	}
	d.Connections = kept
	return true
}

// RemoveConnection deletes a connection by id, returning false when absent.
func (d *Design) RemoveConnection(connectionID string) bool {
	for i := range d.Connections {
		if d.Connections[i].ID == connectionID {
			d.Connections = append(d.Connections[:i], d.Connections[i+1:]...)
			return true
		}
	}
	return false
}

// RecomputeCounts refreshes the derived graph counters.
func (d *Design) RecomputeCounts() {
	d.NodeCount = len(d.Nodes)
	d.ConnectionCount = len(d.Connections)
}

// Touch bumps the update timestamp.
func (d *Design) Touch() {
	d.UpdatedAt = time.Now().UTC()
}

// CloneGraph deep-copies nodes, connections, and canvas config.
func (d *Design) CloneGraph() ([]Node, []Connection, map[string]any) {
	nodes := make([]Node, len(d.Nodes))
	for i := range d.Nodes {
		nodes[i] = *d.Nodes[i].Clone()
	}
	connections := make([]Connection, len(d.Connections))
	for i := range d.Connections {
		connections[i] = *d.Connections[i].Clone()
	}
	return nodes, connections, utils.CloneMap(d.CanvasConfig)
}

// Duplicate deep-copies the design into a fresh draft: new id, zeroed
// counters, no version pointer. Versions and executions are not carried.
func (d *Design) Duplicate(newName, createdBy string) *Design {
	dup := NewDesign(newName, d.Description, d.Category, createdBy)
	dup.Nodes, dup.Connections, dup.CanvasConfig = d.CloneGraph()
	dup.RecomputeCounts()
	return dup
}

// ChangeEntry records one delta captured by a version snapshot.
type ChangeEntry struct {
	Kind        ChangeKind `json:"type"`
	Description string     `json:"description"`
}

// Version is an immutable snapshot of a design's graph. The snapshot slices
// are deep copies; mutating the live design never alters a version.
type Version struct {
	ID                  string         `json:"id" db:"id"`
	DesignID            string         `json:"design_id" db:"design_id"`
	Name                string         `json:"version_name" db:"version_name" validate:"required,max=100"`
	Description         string         `json:"description" db:"description"`
	NodesSnapshot       []Node         `json:"nodes_snapshot" db:"nodes_snapshot"`
	ConnectionsSnapshot []Connection   `json:"connections_snapshot" db:"connections_snapshot"`
	CanvasSnapshot      map[string]any `json:"canvas_snapshot" db:"canvas_snapshot"`
	Changes             []ChangeEntry  `json:"changes" db:"changes"`
	Tags                []string       `json:"tags" db:"tags"`
	IsCurrent           bool           `json:"is_current" db:"is_current"`
	CreatedBy           string         `json:"created_by" db:"created_by"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// NewVersion snapshots the design's live graph.
func NewVersion(d *Design, name, description string, tags []string, createdBy string) *Version {
	nodes, connections, canvas := d.CloneGraph()
	return &Version{
		ID:                  utils.GenerateID(),
		DesignID:            d.ID,
		Name:                name,
		Description:         description,
		NodesSnapshot:       nodes,
		ConnectionsSnapshot: connections,
		CanvasSnapshot:      canvas,
		Changes:             []ChangeEntry{},
		Tags:                utils.CloneStrings(tags),
		CreatedBy:           createdBy,
		CreatedAt:           time.Now().UTC(),
	}
}

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry is one line of an execution's append-only log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	NodeID    *string   `json:"node_id,omitempty"`
}

// Execution is one tracked run of a design, optionally pinned to a version.
// Only the engine mutates an execution after creation.
type Execution struct {
	ID          string          `json:"id" db:"id"`
	DesignID    string          `json:"design_id" db:"design_id"`
	VersionID   *string         `json:"version_id,omitempty" db:"version_id"`
	ExecutionID string          `json:"execution_id" db:"execution_id"`
	Status      ExecutionStatus `json:"status" db:"status"`
	InputData   map[string]any  `json:"input_data" db:"input_data"`
	OutputData  map[string]any  `json:"output_data,omitempty" db:"output_data"`
	Logs        []LogEntry      `json:"execution_logs" db:"execution_logs"`
	ErrorMsg    *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt   time.Time       `json:"started_at" db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	DurationMS  *int64          `json:"duration,omitempty" db:"duration_ms"`
	CurrentNode *string         `json:"current_node,omitempty" db:"current_node"`
	Context     map[string]any  `json:"execution_context,omitempty" db:"execution_context"`
}

// NewExecution creates a pending execution record.
func NewExecution(designID string, versionID *string, input map[string]any) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:          utils.GenerateID(),
		DesignID:    designID,
		VersionID:   versionID,
		ExecutionID: utils.GenerateExecutionID(now),
		Status:      ExecutionStatusPending,
		InputData:   utils.CloneMap(input),
		Logs:        []LogEntry{},
		StartedAt:   now,
		Context:     map[string]any{},
	}
}

// AppendLog adds an ordered log entry.
func (e *Execution) AppendLog(level LogLevel, message string, nodeID *string) {
	e.Logs = append(e.Logs, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
	})
}

// MarkRunning transitions pending→running.
func (e *Execution) MarkRunning() {
	e.Status = ExecutionStatusRunning
}

// MarkCompleted transitions to completed with output data.
func (e *Execution) MarkCompleted(output map[string]any) {
	e.Status = ExecutionStatusCompleted
	e.OutputData = output
	e.finish()
}

// MarkFailed transitions to failed with the engine's error message.
func (e *Execution) MarkFailed(errMsg string) {
	e.Status = ExecutionStatusFailed
	e.ErrorMsg = &errMsg
	e.finish()
}

// MarkCancelled transitions to cancelled.
func (e *Execution) MarkCancelled() {
	e.Status = ExecutionStatusCancelled
	e.finish()
}

func (e *Execution) finish() {
	now := time.Now().UTC()
	e.CompletedAt = &now
	e.DurationMS = utils.Int64Ptr(now.Sub(e.StartedAt).Milliseconds())
	e.CurrentNode = nil
}

// IsSuccessful reports a completed run with no recorded error.
func (e *Execution) IsSuccessful() bool {
	return e.Status == ExecutionStatusCompleted && e.ErrorMsg == nil
}

// Template seeds new designs with a prebuilt graph.
type Template struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Description  string         `json:"description" db:"description"`
	Category     string         `json:"category" db:"category"`
	Nodes        []Node         `json:"nodes" db:"nodes"`
	Connections  []Connection   `json:"connections" db:"connections"`
	CanvasConfig map[string]any `json:"canvas_config" db:"canvas_config"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// Statistics summarizes a design's execution history.
type Statistics struct {
	TotalExecutions      int64       `json:"total_executions"`
	SuccessfulExecutions int64       `json:"successful_executions"`
	SuccessRate          float64     `json:"success_rate"`
	RecentExecutions     []Execution `json:"recent_executions"`
	AverageDurationMS    float64     `json:"average_duration"`
	NodeCount            int         `json:"node_count"`
	ConnectionCount      int         `json:"connection_count"`
	VersionCount         int64       `json:"version_count"`
}

// ValidationResult is the outcome of graph validation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

package designs

import (
	"context"
	"fmt"
	"time"

	"flowcanvas/internal/config"
	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"
	"flowcanvas/pkg/utils"
	"flowcanvas/pkg/validator"
)

// EventPublisher broadcasts domain events. Implementations must be safe for
// concurrent use; publish failures are logged, never surfaced to callers.
type EventPublisher interface {
	PublishDesignEvent(ctx context.Context, action string, design *Design) error
	PublishExecutionEvent(ctx context.Context, execution *Execution) error
}

// Service coordinates design CRUD, graph mutation, versioning, execution
// tracking, and import/export.
type Service struct {
	repo      Repository
	validator *GraphValidator
	engine    Engine
	events    EventPublisher
	cfg       *config.DesignerConfig
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewService wires the designer core. events may be nil when no broker is
// configured.
func NewService(repo Repository, gv *GraphValidator, engine Engine, events EventPublisher, cfg *config.DesignerConfig) *Service {
	if gv == nil {
		gv = NewGraphValidator(nil)
	}
	if cfg == nil {
		cfg = &config.DesignerConfig{
			ExecutionTimeout:  5 * time.Minute,
			MaxNodesPerDesign: 500,
			RecentRunsInStats: 10,
		}
	}
	return &Service{
		repo:      repo,
		validator: gv,
		engine:    engine,
		events:    events,
		cfg:       cfg,
		logger:    logger.New("designs"),
		metrics:   metrics.GetGlobal(),
	}
}

// CreateDesignRequest carries the fields accepted on design creation.
type CreateDesignRequest struct {
	Name        string `json:"name" validate:"required,design_name"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=100"`
	CreatedBy   string `json:"created_by"`
}

// UpdateDesignRequest carries the mutable design fields. Derived counters
// are absent on purpose: they cannot be set by callers.
type UpdateDesignRequest struct {
	Name         *string        `json:"name,omitempty" validate:"omitempty,design_name"`
	Description  *string        `json:"description,omitempty" validate:"omitempty,max=1000"`
	Category     *string        `json:"category,omitempty" validate:"omitempty,max=100"`
	Status       *string        `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	CanvasConfig map[string]any `json:"canvas_config,omitempty"`
}

// NodeUpdate is the partial payload merged into an existing node.
type NodeUpdate struct {
	Name     *string        `json:"name,omitempty"`
	Position *Position      `json:"position,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// CreateVersionRequest names a snapshot.
type CreateVersionRequest struct {
	Name        string   `json:"version_name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=1000"`
	Tags        []string `json:"tags,omitempty"`
	CreatedBy   string   `json:"created_by"`
}

// ExecuteRequest starts a run.
type ExecuteRequest struct {
	InputData map[string]any `json:"input_data,omitempty"`
	VersionID *string        `json:"version_id,omitempty"`
}

// CreateDesign creates a draft design with an empty graph.
func (s *Service) CreateDesign(ctx context.Context, req *CreateDesignRequest) (*Design, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	design := NewDesign(req.Name, req.Description, req.Category, req.CreatedBy)
	if err := s.repo.CreateDesign(ctx, design); err != nil {
		s.metrics.RecordDesignOperation("create", "error")
		return nil, err
	}

	s.metrics.RecordDesignOperation("create", "success")
	s.logger.InfoContext(ctx, "Design created", "design_id", design.ID, "name", design.Name)
	s.publishDesign(ctx, "design.created", design)
	return design, nil
}

// GetDesign loads one design.
func (s *Service) GetDesign(ctx context.Context, id string) (*Design, error) {
	return s.getDesign(ctx, id)
}

// ListDesigns returns a page of designs with the total count.
func (s *Service) ListDesigns(ctx context.Context, filter *DesignFilter) ([]*Design, int64, error) {
	if filter == nil {
		filter = &DesignFilter{}
	}
	filter.Normalize()
	return s.repo.ListDesigns(ctx, filter)
}

// UpdateDesign merges the provided fields into the design. Derived counters
// are recomputed, never taken from the request.
func (s *Service) UpdateDesign(ctx context.Context, id string, req *UpdateDesignRequest) (*Design, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	design, err := s.getDesign(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		design.Name = *req.Name
	}
	if req.Description != nil {
		design.Description = *req.Description
	}
	if req.Category != nil {
		design.Category = *req.Category
	}
	if req.Status != nil {
		design.Status = DesignStatus(*req.Status)
	}
	if req.CanvasConfig != nil {
		design.CanvasConfig = utils.CloneMap(req.CanvasConfig)
	}

	if err := s.saveDesign(ctx, design, "update"); err != nil {
		return nil, err
	}
	s.publishDesign(ctx, "design.updated", design)
	return design, nil
}

// DeleteDesign removes a design and everything it owns. Blocked while any
// execution is still pending or running.
func (s *Service) DeleteDesign(ctx context.Context, id string) error {
	design, err := s.getDesign(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.repo.CountActiveExecutions(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return errors.ConflictError(errors.CodeActiveExecutions,
			fmt.Sprintf("design has %d active execution(s); cancel them before deleting", active))
	}

	if err := s.repo.DeleteDesign(ctx, id); err != nil {
		s.metrics.RecordDesignOperation("delete", "error")
		return err
	}

	s.metrics.RecordDesignOperation("delete", "success")
	s.logger.InfoContext(ctx, "Design deleted", "design_id", id)
	s.publishDesign(ctx, "design.deleted", design)
	return nil
}

// AddNode appends a node to the live graph.
func (s *Service) AddNode(ctx context.Context, designID string, node Node) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	if err := s.validator.CheckKnownType(node.Type); err != nil {
		return nil, err
	}
	if node.ID == "" {
		node.ID = utils.GenerateID()
	}
	if design.GetNode(node.ID) != nil {
		return nil, errors.ValidationError(errors.CodeDuplicateNode,
			fmt.Sprintf("node %q already exists in design", node.ID))
	}
	if len(design.Nodes) >= s.cfg.MaxNodesPerDesign {
		return nil, errors.ValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("design node limit (%d) reached", s.cfg.MaxNodesPerDesign))
	}
	if node.Config == nil {
		node.Config = map[string]any{}
	}

	design.Nodes = append(design.Nodes, node)
	if err := s.saveDesign(ctx, design, "add_node"); err != nil {
		return nil, err
	}
	return design, nil
}

// UpdateNode merges partial updates into an existing node. Config entries
// merge key by key; omitted keys survive.
func (s *Service) UpdateNode(ctx context.Context, designID, nodeID string, update *NodeUpdate) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	node := design.GetNode(nodeID)
	if node == nil {
		return nil, errors.NotFoundError(errors.CodeNodeNotFound, "node", nodeID)
	}

	if update.Name != nil {
		node.Name = *update.Name
	}
	if update.Position != nil {
		node.Position = *update.Position
	}
	if update.Config != nil {
		if node.Config == nil {
			node.Config = map[string]any{}
		}
		for k, v := range update.Config {
			node.Config[k] = v
		}
	}

	if err := s.saveDesign(ctx, design, "update_node"); err != nil {
		return nil, err
	}
	return design, nil
}

// DeleteNode removes a node and cascades every connection referencing it in
// the same save, so no reader observes a dangling edge.
func (s *Service) DeleteNode(ctx context.Context, designID, nodeID string) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	if !design.RemoveNode(nodeID) {
		return nil, errors.NotFoundError(errors.CodeNodeNotFound, "node", nodeID)
	}

	if err := s.saveDesign(ctx, design, "delete_node"); err != nil {
		return nil, err
	}
	return design, nil
}

// AddConnection adds a directed edge. Both endpoints must exist; exact
// duplicates are rejected unless parallel edges are enabled.
func (s *Service) AddConnection(ctx context.Context, designID string, conn Connection) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	verrs := errors.NewValidationErrors()
	if design.GetNode(conn.SourceID) == nil {
		verrs.Add("source node %q does not exist", conn.SourceID)
	}
	if design.GetNode(conn.TargetID) == nil {
		verrs.Add("target node %q does not exist", conn.TargetID)
	}
	if err := verrs.AsError(); err != nil {
		return nil, err
	}

	if conn.ID == "" {
		conn.ID = utils.GenerateID()
	}
	if design.GetConnection(conn.ID) != nil {
		return nil, errors.ValidationError(errors.CodeDuplicateEdge,
			fmt.Sprintf("connection %q already exists in design", conn.ID))
	}
	if !s.cfg.AllowParallelEdges {
		for i := range design.Connections {
			if design.Connections[i].SameEndpoints(&conn) {
				return nil, errors.ValidationError(errors.CodeDuplicateEdge,
					fmt.Sprintf("connection from %q to %q already exists", conn.SourceID, conn.TargetID))
			}
		}
	}

	design.Connections = append(design.Connections, conn)
	if err := s.saveDesign(ctx, design, "add_connection"); err != nil {
		return nil, err
	}
	return design, nil
}

// DeleteConnection removes an edge by id.
func (s *Service) DeleteConnection(ctx context.Context, designID, connectionID string) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	if !design.RemoveConnection(connectionID) {
		return nil, errors.NotFoundError(errors.CodeEdgeNotFound, "connection", connectionID)
	}

	if err := s.saveDesign(ctx, design, "delete_connection"); err != nil {
		return nil, err
	}
	return design, nil
}

// Validate runs every graph check and reports all violations.
func (s *Service) Validate(ctx context.Context, designID string) (*ValidationResult, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateGraph(design.Nodes, design.Connections), nil
}

// CreateVersion snapshots the live graph. Change entries are computed by
// diffing against the current version's snapshot (everything counts as added
// when no version exists yet). The new version is only promoted to current
// when auto-promotion is configured.
func (s *Service) CreateVersion(ctx context.Context, designID string, req *CreateVersionRequest) (*Version, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	version := NewVersion(design, req.Name, req.Description, req.Tags, req.CreatedBy)
	version.Changes = s.changesSinceCurrent(ctx, design, version)

	if err := s.repo.CreateVersion(ctx, version); err != nil {
		return nil, err
	}
	s.metrics.RecordVersionCreated("manual")

	if s.cfg.AutoPromoteVersions {
		if err := s.repo.SetCurrentVersion(ctx, designID, version.ID); err != nil {
			return nil, err
		}
		version.IsCurrent = true
	}

	s.logger.InfoContext(ctx, "Version created",
		"design_id", designID,
		"version_id", version.ID,
		"name", version.Name,
	)
	return version, nil
}

func (s *Service) changesSinceCurrent(ctx context.Context, design *Design, version *Version) []ChangeEntry {
	if design.CurrentVersionID == nil {
		diff := CompareGraphs(nil, nil, version.NodesSnapshot, version.ConnectionsSnapshot)
		return diff.ChangesAgainst()
	}
	current, err := s.repo.GetVersion(ctx, *design.CurrentVersionID)
	if err != nil || current == nil {
		return []ChangeEntry{}
	}
	return CompareVersions(current, version).ChangesAgainst()
}

// ListVersions returns every snapshot of a design, newest first.
func (s *Service) ListVersions(ctx context.Context, designID string) ([]*Version, error) {
	if _, err := s.getDesign(ctx, designID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, designID)
}

// GetVersion loads one snapshot.
func (s *Service) GetVersion(ctx context.Context, id string) (*Version, error) {
	return s.getVersion(ctx, id)
}

// SetCurrentVersion promotes a version. The swap is atomic and idempotent:
// promoting the already-current version is a no-op success.
func (s *Service) SetCurrentVersion(ctx context.Context, versionID string) (*Version, error) {
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetCurrentVersion(ctx, version.DesignID, version.ID); err != nil {
		return nil, err
	}
	version.IsCurrent = true
	return version, nil
}

// Rollback replaces the live graph with a deep copy of the version's
// snapshot. The pre-rollback graph is captured as a new version tagged
// "rollback" first, so the operation can itself be undone even when the
// outgoing graph was never versioned.
func (s *Service) Rollback(ctx context.Context, designID, versionID string) (*Design, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.DesignID != designID {
		return nil, errors.ValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("version %q does not belong to design %q", versionID, designID))
	}

	// Snapshot the outgoing graph before it is replaced.
	record := NewVersion(design, fmt.Sprintf("Before rollback to %s", version.Name),
		fmt.Sprintf("graph saved before restoring version %s", version.ID),
		[]string{"rollback"}, design.CreatedBy)
	record.Changes = []ChangeEntry{{
		Kind:        ChangeKindModify,
		Description: fmt.Sprintf("graph replaced by restoring version %s", version.Name),
	}}

	snapshot := &Design{
		Nodes:        version.NodesSnapshot,
		Connections:  version.ConnectionsSnapshot,
		CanvasConfig: version.CanvasSnapshot,
	}
	design.Nodes, design.Connections, design.CanvasConfig = snapshot.CloneGraph()

	if err := s.saveDesign(ctx, design, "rollback"); err != nil {
		return nil, err
	}
	if err := s.repo.CreateVersion(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "Rollback succeeded but history version failed",
			"design_id", designID, "error", err)
	} else {
		s.metrics.RecordVersionCreated("rollback")
	}

	s.logger.InfoContext(ctx, "Design rolled back",
		"design_id", designID,
		"version_id", versionID,
	)
	return design, nil
}

// Compare structurally diffs two versions of the same design.
func (s *Service) Compare(ctx context.Context, sourceVersionID, targetVersionID string) (*VersionDiff, error) {
	source, err := s.getVersion(ctx, sourceVersionID)
	if err != nil {
		return nil, err
	}
	target, err := s.getVersion(ctx, targetVersionID)
	if err != nil {
		return nil, err
	}
	if source.DesignID != target.DesignID {
		return nil, errors.ValidationError(errors.CodeInvalidInput,
			"versions belong to different designs")
	}
	return CompareVersions(source, target), nil
}

// Execute starts a run and returns once it is accepted; the engine drives it
// to a terminal state asynchronously.
func (s *Service) Execute(ctx context.Context, designID string, req *ExecuteRequest) (*Execution, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &ExecuteRequest{}
	}

	nodes, connections := design.Nodes, design.Connections
	if req.VersionID != nil {
		version, err := s.getVersion(ctx, *req.VersionID)
		if err != nil {
			return nil, err
		}
		if version.DesignID != designID {
			return nil, errors.ValidationError(errors.CodeInvalidInput,
				fmt.Sprintf("version %q does not belong to design %q", *req.VersionID, designID))
		}
		nodes, connections = version.NodesSnapshot, version.ConnectionsSnapshot
	}

	execution := NewExecution(designID, req.VersionID, req.InputData)
	if err := s.repo.CreateExecution(ctx, execution); err != nil {
		return nil, err
	}

	// Register before the goroutine launches so a cancel arriving ahead of
	// pickup still reaches the run. The engine gets its own copy of the
	// record; the one returned to the caller is never touched again.
	runCtx := s.engine.Register(execution.ID)

	// Engine failures land on the record, not on this call.
	go func(runCtx context.Context, exec *Execution, nodes []Node, connections []Connection) {
		s.engine.Execute(runCtx, exec, nodes, connections)
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.RefreshStatistics(bg, designID); err != nil {
			s.logger.Error("Failed to refresh design stats", "design_id", designID, "error", err)
		}
		s.publishExecution(bg, exec)
	}(runCtx, cloneExecution(execution), nodes, connections)

	s.logger.InfoContext(ctx, "Execution accepted",
		"design_id", designID,
		"execution_id", execution.ExecutionID,
	)
	return execution, nil
}

// GetExecution loads a run with its full ordered log.
func (s *Service) GetExecution(ctx context.Context, id string) (*Execution, error) {
	return s.getExecution(ctx, id)
}

// ListExecutions returns a page of runs.
func (s *Service) ListExecutions(ctx context.Context, filter *ExecutionFilter) ([]*Execution, int64, error) {
	if filter == nil {
		filter = &ExecutionFilter{}
	}
	filter.Normalize()
	return s.repo.ListExecutions(ctx, filter)
}

// CancelExecution requests a stop. Cancelling a terminal run is a no-op that
// reports the existing state. The call waits briefly for the engine to
// acknowledge so callers never see a still-live status after it returns.
func (s *Service) CancelExecution(ctx context.Context, id string) (*Execution, error) {
	execution, err := s.getExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if execution.Status.IsTerminal() {
		return execution, nil
	}

	if !s.engine.Cancel(execution.ID) {
		// Engine is not driving this run (pending pickup or process
		// restart): settle the record directly.
		execution.AppendLog(LogLevelWarn, "execution cancelled", nil)
		execution.MarkCancelled()
		if err := s.repo.UpdateExecution(ctx, execution); err != nil {
			// The run reached a terminal state between our read and the
			// write; report what actually happened.
			if errors.IsConflict(err) {
				return s.getExecution(ctx, id)
			}
			return nil, err
		}
		if err := s.RefreshStatistics(ctx, execution.DesignID); err != nil {
			s.logger.WarnContext(ctx, "Failed to refresh design stats",
				"design_id", execution.DesignID, "error", err)
		}
		s.publishExecution(ctx, execution)
		return execution, nil
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		latest, err := s.getExecution(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest.Status.IsTerminal() {
			return latest, nil
		}
		select {
		case <-ctx.Done():
			return latest, nil
		case <-time.After(50 * time.Millisecond):
		}
	}
	return s.getExecution(ctx, id)
}

// GetStatistics summarizes a design's run history.
func (s *Service) GetStatistics(ctx context.Context, designID string) (*Statistics, error) {
	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		NodeCount:        design.NodeCount,
		ConnectionCount:  design.ConnectionCount,
		RecentExecutions: []Execution{},
	}

	recent := s.cfg.RecentRunsInStats
	if recent <= 0 {
		recent = 10
	}

	var durations int64
	var terminalWithDuration int64
	var terminal int64
	total, err := s.forEachExecution(ctx, designID, func(exec *Execution) {
		if len(stats.RecentExecutions) < recent {
			stats.RecentExecutions = append(stats.RecentExecutions, *exec)
		}
		if !exec.Status.IsTerminal() {
			return
		}
		terminal++
		if exec.IsSuccessful() {
			stats.SuccessfulExecutions++
		}
		if exec.DurationMS != nil {
			durations += *exec.DurationMS
			terminalWithDuration++
		}
	})
	if err != nil {
		return nil, err
	}

	stats.TotalExecutions = total
	if terminal > 0 {
		stats.SuccessRate = float64(stats.SuccessfulExecutions) / float64(terminal)
	}
	if terminalWithDuration > 0 {
		stats.AverageDurationMS = float64(durations) / float64(terminalWithDuration)
	}

	stats.VersionCount, err = s.repo.CountVersions(ctx, designID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RefreshStatistics recomputes a design's derived execution counters from
// its terminal runs. Also invoked by the maintenance scheduler.
func (s *Service) RefreshStatistics(ctx context.Context, designID string) error {
	var terminal, successful int64
	if _, err := s.forEachExecution(ctx, designID, func(exec *Execution) {
		if !exec.Status.IsTerminal() {
			return
		}
		terminal++
		if exec.IsSuccessful() {
			successful++
		}
	}); err != nil {
		return err
	}

	rate := 0.0
	if terminal > 0 {
		rate = float64(successful) / float64(terminal)
	}
	return s.repo.UpdateDesignStats(ctx, designID, terminal, rate)
}

// forEachExecution walks a design's complete run history newest first, one
// repository page at a time, and returns the total count. Statistics cover
// every run, not just the latest page.
func (s *Service) forEachExecution(ctx context.Context, designID string, fn func(*Execution)) (int64, error) {
	filter := &ExecutionFilter{DesignID: designID}
	filter.Page = 1
	filter.PageSize = maxStatsPage

	var total int64
	for {
		executions, t, err := s.repo.ListExecutions(ctx, filter)
		if err != nil {
			return 0, err
		}
		total = t
		for _, exec := range executions {
			fn(exec)
		}
		if len(executions) < maxStatsPage || int64(filter.Page)*int64(maxStatsPage) >= t {
			return total, nil
		}
		filter.Page++
	}
}

// DuplicateDesign deep-copies a design into a fresh draft. Versions and
// executions are not carried over and counters start at zero.
func (s *Service) DuplicateDesign(ctx context.Context, designID, newName, createdBy string) (*Design, error) {
	if utils.IsEmpty(newName) {
		return nil, errors.ValidationError(errors.CodeMissingField, "new design name is required")
	}

	design, err := s.getDesign(ctx, designID)
	if err != nil {
		return nil, err
	}

	dup := design.Duplicate(newName, createdBy)
	if err := s.repo.CreateDesign(ctx, dup); err != nil {
		return nil, err
	}

	s.metrics.RecordDesignOperation("duplicate", "success")
	s.publishDesign(ctx, "design.created", dup)
	return dup, nil
}

// ListTemplates returns a page of templates.
func (s *Service) ListTemplates(ctx context.Context, filter *TemplateFilter) ([]*Template, int64, error) {
	if filter == nil {
		filter = &TemplateFilter{}
	}
	filter.Normalize()
	return s.repo.ListTemplates(ctx, filter)
}

// GetTemplate loads one template.
func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	template, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, errors.NotFoundError(errors.CodeTemplateNotFound, "template", id)
	}
	return template, nil
}

// CreateFromTemplate seeds a new draft design from a template's graph.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID, name, createdBy string) (*Design, error) {
	template, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if utils.IsEmpty(name) {
		name = template.Name
	}

	design := NewDesign(name, template.Description, template.Category, createdBy)
	seed := &Design{
		Nodes:        template.Nodes,
		Connections:  template.Connections,
		CanvasConfig: template.CanvasConfig,
	}
	design.Nodes, design.Connections, design.CanvasConfig = seed.CloneGraph()
	design.RecomputeCounts()

	if err := s.repo.CreateDesign(ctx, design); err != nil {
		return nil, err
	}
	s.metrics.RecordDesignOperation("create_from_template", "success")
	s.publishDesign(ctx, "design.created", design)
	return design, nil
}

// maxStatsPage bounds a single repository page while aggregating run history.
const maxStatsPage = 1000

func (s *Service) getDesign(ctx context.Context, id string) (*Design, error) {
	design, err := s.repo.GetDesign(ctx, id)
	if err != nil {
		return nil, err
	}
	if design == nil {
		return nil, errors.NotFoundError(errors.CodeDesignNotFound, "design", id)
	}
	return design, nil
}

func (s *Service) getVersion(ctx context.Context, id string) (*Version, error) {
	version, err := s.repo.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, errors.NotFoundError(errors.CodeVersionNotFound, "version", id)
	}
	return version, nil
}

func (s *Service) getExecution(ctx context.Context, id string) (*Execution, error) {
	execution, err := s.repo.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if execution == nil {
		return nil, errors.NotFoundError(errors.CodeRunNotFound, "execution", id)
	}
	return execution, nil
}

// saveDesign recomputes derived counters and persists under the design's
// revision. A revision mismatch surfaces as ConflictError for the caller to
// retry after re-fetching.
func (s *Service) saveDesign(ctx context.Context, design *Design, operation string) error {
	design.RecomputeCounts()
	design.Touch()

	if err := s.repo.SaveDesign(ctx, design, design.Revision); err != nil {
		s.metrics.RecordDesignOperation(operation, "error")
		return err
	}
	s.metrics.RecordDesignOperation(operation, "success")
	return nil
}

func (s *Service) publishDesign(ctx context.Context, action string, design *Design) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDesignEvent(ctx, action, design); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish design event",
			"action", action, "design_id", design.ID, "error", err)
	}
}

func (s *Service) publishExecution(ctx context.Context, execution *Execution) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExecutionEvent(ctx, execution); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish execution event",
			"execution_id", execution.ExecutionID, "error", err)
	}
}

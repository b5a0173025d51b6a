package designs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/utils"
)

// MemoryRepository is a mutex-guarded in-memory Repository. Every value is
// deep-copied on the way in and out, so callers never alias stored state.
// Used for tests and single-node development runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	designs    map[string]*Design
	versions   map[string]*Version
	executions map[string]*Execution
	templates  map[string]*Template
}

// NewMemoryRepository creates an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		designs:    make(map[string]*Design),
		versions:   make(map[string]*Version),
		executions: make(map[string]*Execution),
		templates:  make(map[string]*Template),
	}
}

func cloneDesign(d *Design) *Design {
	clone := *d
	clone.Nodes, clone.Connections, clone.CanvasConfig = d.CloneGraph()
	if d.CurrentVersionID != nil {
		clone.CurrentVersionID = utils.StringPtr(*d.CurrentVersionID)
	}
	return &clone
}

func cloneVersion(v *Version) *Version {
	clone := *v
	clone.NodesSnapshot = make([]Node, len(v.NodesSnapshot))
	for i := range v.NodesSnapshot {
		clone.NodesSnapshot[i] = *v.NodesSnapshot[i].Clone()
	}
	clone.ConnectionsSnapshot = make([]Connection, len(v.ConnectionsSnapshot))
	copy(clone.ConnectionsSnapshot, v.ConnectionsSnapshot)
	clone.CanvasSnapshot = utils.CloneMap(v.CanvasSnapshot)
	clone.Changes = make([]ChangeEntry, len(v.Changes))
	copy(clone.Changes, v.Changes)
	clone.Tags = utils.CloneStrings(v.Tags)
	return &clone
}

func cloneExecution(e *Execution) *Execution {
	clone := *e
	clone.InputData = utils.CloneMap(e.InputData)
	clone.OutputData = utils.CloneMap(e.OutputData)
	clone.Context = utils.CloneMap(e.Context)
	clone.Logs = make([]LogEntry, len(e.Logs))
	copy(clone.Logs, e.Logs)
	if e.VersionID != nil {
		clone.VersionID = utils.StringPtr(*e.VersionID)
	}
	if e.ErrorMsg != nil {
		clone.ErrorMsg = utils.StringPtr(*e.ErrorMsg)
	}
	if e.CompletedAt != nil {
		clone.CompletedAt = utils.TimePtr(*e.CompletedAt)
	}
	if e.DurationMS != nil {
		clone.DurationMS = utils.Int64Ptr(*e.DurationMS)
	}
	if e.CurrentNode != nil {
		clone.CurrentNode = utils.StringPtr(*e.CurrentNode)
	}
	return &clone
}

func cloneTemplate(t *Template) *Template {
	clone := *t
	seed := &Design{Nodes: t.Nodes, Connections: t.Connections, CanvasConfig: t.CanvasConfig}
	clone.Nodes, clone.Connections, clone.CanvasConfig = seed.CloneGraph()
	return &clone
}

func (r *MemoryRepository) CreateDesign(ctx context.Context, design *Design) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.designs[design.ID]; exists {
		return errors.ConflictError(errors.CodeInvalidInput, "design id already exists")
	}
	r.designs[design.ID] = cloneDesign(design)
	return nil
}

func (r *MemoryRepository) GetDesign(ctx context.Context, id string) (*Design, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	design, ok := r.designs[id]
	if !ok {
		return nil, nil
	}
	return cloneDesign(design), nil
}

func (r *MemoryRepository) ListDesigns(ctx context.Context, filter *DesignFilter) ([]*Design, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Design
	for _, design := range r.designs {
		if filter.Status != "" && string(design.Status) != filter.Status {
			continue
		}
		if filter.Category != "" && design.Category != filter.Category {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(design.Name), needle) &&
				!strings.Contains(strings.ToLower(design.Description), needle) {
				continue
			}
		}
		matched = append(matched, design)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortDir == "asc" {
			return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	page := paginate(len(matched), filter.GetOffset(), filter.PageSize)
	out := make([]*Design, 0, len(page))
	for _, idx := range page {
		out = append(out, cloneDesign(matched[idx]))
	}
	return out, total, nil
}

func (r *MemoryRepository) SaveDesign(ctx context.Context, design *Design, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.designs[design.ID]
	if !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", design.ID)
	}
	if stored.Revision != expectedRevision {
		return errors.ConflictError(errors.CodeRevisionMismatch,
			"design was modified concurrently; re-fetch and retry").
			WithContext("design_id", design.ID)
	}

	saved := cloneDesign(design)
	saved.Revision = expectedRevision + 1
	// Stats columns are owned by UpdateDesignStats.
	saved.ExecutionCount = stored.ExecutionCount
	saved.SuccessRate = stored.SuccessRate
	saved.CurrentVersionID = stored.CurrentVersionID
	r.designs[design.ID] = saved
	design.Revision = saved.Revision
	return nil
}

func (r *MemoryRepository) DeleteDesign(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.designs[id]; !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", id)
	}
	delete(r.designs, id)
	for versionID, version := range r.versions {
		if version.DesignID == id {
			delete(r.versions, versionID)
		}
	}
	for executionID, execution := range r.executions {
		if execution.DesignID == id {
			delete(r.executions, executionID)
		}
	}
	return nil
}

func (r *MemoryRepository) CountDesigns(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.designs)), nil
}

func (r *MemoryRepository) UpdateDesignStats(ctx context.Context, designID string, executionCount int64, successRate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	design, ok := r.designs[designID]
	if !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", designID)
	}
	design.ExecutionCount = executionCount
	design.SuccessRate = successRate
	return nil
}

func (r *MemoryRepository) CreateVersion(ctx context.Context, version *Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.designs[version.DesignID]; !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", version.DesignID)
	}
	r.versions[version.ID] = cloneVersion(version)
	return nil
}

func (r *MemoryRepository) GetVersion(ctx context.Context, id string) (*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, ok := r.versions[id]
	if !ok {
		return nil, nil
	}
	return cloneVersion(version), nil
}

func (r *MemoryRepository) ListVersions(ctx context.Context, designID string) ([]*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Version
	for _, version := range r.versions {
		if version.DesignID == designID {
			out = append(out, cloneVersion(version))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CountVersions(ctx context.Context, designID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, version := range r.versions {
		if version.DesignID == designID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) SetCurrentVersion(ctx context.Context, designID, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	design, ok := r.designs[designID]
	if !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", designID)
	}
	target, ok := r.versions[versionID]
	if !ok || target.DesignID != designID {
		return errors.NotFoundError(errors.CodeVersionNotFound, "version", versionID)
	}

	for _, version := range r.versions {
		if version.DesignID == designID {
			version.IsCurrent = false
		}
	}
	target.IsCurrent = true
	design.CurrentVersionID = utils.StringPtr(versionID)
	return nil
}

func (r *MemoryRepository) CreateExecution(ctx context.Context, execution *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.designs[execution.DesignID]; !ok {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", execution.DesignID)
	}
	r.executions[execution.ID] = cloneExecution(execution)
	return nil
}

func (r *MemoryRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if execution, ok := r.executions[id]; ok {
		return cloneExecution(execution), nil
	}
	// Callers may address a run by its human-readable execution id.
	for _, execution := range r.executions {
		if execution.ExecutionID == id {
			return cloneExecution(execution), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateExecution(ctx context.Context, execution *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.executions[execution.ID]
	if !ok {
		return errors.NotFoundError(errors.CodeRunNotFound, "execution", execution.ID)
	}
	// Terminal records are immutable: a late engine write must not resurrect
	// a run that was already settled.
	if stored.Status.IsTerminal() {
		return errors.ConflictError(errors.CodeRunFinished,
			"execution already reached a terminal state").
			WithContext("execution_id", execution.ID).
			WithContext("status", string(stored.Status))
	}
	r.executions[execution.ID] = cloneExecution(execution)
	return nil
}

func (r *MemoryRepository) ListExecutions(ctx context.Context, filter *ExecutionFilter) ([]*Execution, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Execution
	for _, execution := range r.executions {
		if filter.DesignID != "" && execution.DesignID != filter.DesignID {
			continue
		}
		if filter.Status != "" && string(execution.Status) != filter.Status {
			continue
		}
		matched = append(matched, execution)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := int64(len(matched))
	page := paginate(len(matched), filter.GetOffset(), filter.PageSize)
	out := make([]*Execution, 0, len(page))
	for _, idx := range page {
		out = append(out, cloneExecution(matched[idx]))
	}
	return out, total, nil
}

func (r *MemoryRepository) CountActiveExecutions(ctx context.Context, designID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, execution := range r.executions {
		if execution.DesignID == designID && !execution.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, execution := range r.executions {
		if execution.Status.IsTerminal() && execution.CompletedAt != nil && execution.CompletedAt.Before(cutoff) {
			delete(r.executions, id)
			removed++
		}
	}
	return removed, nil
}

func (r *MemoryRepository) CreateTemplate(ctx context.Context, template *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[template.ID] = cloneTemplate(template)
	return nil
}

func (r *MemoryRepository) GetTemplate(ctx context.Context, id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	template, ok := r.templates[id]
	if !ok {
		return nil, nil
	}
	return cloneTemplate(template), nil
}

func (r *MemoryRepository) ListTemplates(ctx context.Context, filter *TemplateFilter) ([]*Template, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Template
	for _, template := range r.templates {
		if filter.Category != "" && template.Category != filter.Category {
			continue
		}
		matched = append(matched, template)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})

	total := int64(len(matched))
	page := paginate(len(matched), filter.GetOffset(), filter.PageSize)
	out := make([]*Template, 0, len(page))
	for _, idx := range page {
		out = append(out, cloneTemplate(matched[idx]))
	}
	return out, total, nil
}

func (r *MemoryRepository) ListDesignIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.designs))
	for id := range r.designs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// paginate returns the indexes of the requested page.
func paginate(total, offset, pageSize int) []int {
	if pageSize <= 0 {
		pageSize = total
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	out := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, i)
	}
	return out
}

package designs

import (
	"context"
	"time"

	"flowcanvas/internal/common"
)

// DesignFilter narrows design listings.
type DesignFilter struct {
	common.PaginationRequest
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
}

// ExecutionFilter narrows execution listings.
type ExecutionFilter struct {
	common.PaginationRequest
	DesignID string `json:"design_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	common.PaginationRequest
	Category string `json:"category,omitempty"`
}

// Repository is the persistence boundary for the designer core. Lookup
// methods return (nil, nil) when the entity does not exist; the service maps
// that to NotFoundError.
//
// SaveDesign enforces optimistic concurrency: it persists the design only if
// the stored revision still equals expectedRevision, bumping the revision on
// success and returning a ConflictError otherwise.
type Repository interface {
	CreateDesign(ctx context.Context, design *Design) error
	GetDesign(ctx context.Context, id string) (*Design, error)
	ListDesigns(ctx context.Context, filter *DesignFilter) ([]*Design, int64, error)
	SaveDesign(ctx context.Context, design *Design, expectedRevision int64) error
	DeleteDesign(ctx context.Context, id string) error
	CountDesigns(ctx context.Context) (int64, error)
	// UpdateDesignStats writes the derived execution counters without
	// touching the revision, so stat refreshes never race graph edits.
	UpdateDesignStats(ctx context.Context, designID string, executionCount int64, successRate float64) error

	CreateVersion(ctx context.Context, version *Version) error
	GetVersion(ctx context.Context, id string) (*Version, error)
	ListVersions(ctx context.Context, designID string) ([]*Version, error)
	CountVersions(ctx context.Context, designID string) (int64, error)
	// SetCurrentVersion atomically marks the version current and clears the
	// flag on every sibling, updating the design's current-version pointer.
	SetCurrentVersion(ctx context.Context, designID, versionID string) error

	CreateExecution(ctx context.Context, execution *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	UpdateExecution(ctx context.Context, execution *Execution) error
	ListExecutions(ctx context.Context, filter *ExecutionFilter) ([]*Execution, int64, error)
	CountActiveExecutions(ctx context.Context, designID string) (int64, error)
	// DeleteExecutionsBefore removes terminal executions completed before
	// the cutoff. Used by the retention scheduler.
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateTemplate(ctx context.Context, template *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context, filter *TemplateFilter) ([]*Template, int64, error)

	// ListDesignIDs returns every design id, for maintenance sweeps.
	ListDesignIDs(ctx context.Context) ([]string, error)
}

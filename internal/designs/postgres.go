package designs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flowcanvas/internal/storage/postgres"
	"flowcanvas/pkg/errors"

	"github.com/jackc/pgx/v5"
)

// PostgresRepository persists the designer entities in Postgres. Graph
// payloads (nodes, connections, canvas, logs) live in JSONB columns; scalar
// fields get real columns so filters stay in SQL.
type PostgresRepository struct {
	db *postgres.DB
}

// NewPostgresRepository creates a Postgres-backed Repository.
func NewPostgresRepository(db *postgres.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const designColumns = `id, name, description, category, status, nodes, connections,
	canvas_config, current_version_id, created_by, created_at, updated_at,
	revision, execution_count, success_rate, node_count, connection_count`

func (r *PostgresRepository) CreateDesign(ctx context.Context, design *Design) error {
	nodes, connections, canvas, err := marshalGraph(design)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO workflow_designs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, designColumns)

	_, err = r.db.Exec(ctx, "insert", "workflow_designs", query,
		design.ID, design.Name, design.Description, design.Category, design.Status,
		nodes, connections, canvas, design.CurrentVersionID, design.CreatedBy,
		design.CreatedAt, design.UpdatedAt, design.Revision,
		design.ExecutionCount, design.SuccessRate, design.NodeCount, design.ConnectionCount)
	if err != nil {
		return errors.DatabaseError("failed to create design", err)
	}
	return nil
}

func (r *PostgresRepository) GetDesign(ctx context.Context, id string) (*Design, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_designs WHERE id = $1`, designColumns)
	row := r.db.QueryRow(ctx, "select", "workflow_designs", query, id)
	return scanDesign(row)
}

func (r *PostgresRepository) ListDesigns(ctx context.Context, filter *DesignFilter) ([]*Design, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	idx := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, filter.Category)
		idx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM workflow_designs " + where
	if err := r.db.QueryRow(ctx, "count", "workflow_designs", countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("failed to count designs", err)
	}

	direction := "DESC"
	if filter.SortDir == "asc" {
		direction = "ASC"
	}
	orderBy := "updated_at"
	switch filter.SortBy {
	case "name":
		orderBy = "name"
	case "created_at":
		orderBy = "created_at"
	}

	query := fmt.Sprintf(`SELECT %s FROM workflow_designs %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		designColumns, where, orderBy, direction, idx, idx+1)
	args = append(args, filter.PageSize, filter.GetOffset())

	rows, err := r.db.Query(ctx, "select", "workflow_designs", query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("failed to list designs", err)
	}
	defer rows.Close()

	var out []*Design
	for rows.Next() {
		design, err := scanDesign(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, design)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) SaveDesign(ctx context.Context, design *Design, expectedRevision int64) error {
	nodes, connections, canvas, err := marshalGraph(design)
	if err != nil {
		return err
	}

	query := `UPDATE workflow_designs SET
		name = $1, description = $2, category = $3, status = $4,
		nodes = $5, connections = $6, canvas_config = $7,
		updated_at = $8, revision = revision + 1,
		node_count = $9, connection_count = $10
		WHERE id = $11 AND revision = $12`

	tag, err := r.db.Exec(ctx, "update", "workflow_designs", query,
		design.Name, design.Description, design.Category, design.Status,
		nodes, connections, canvas, design.UpdatedAt,
		design.NodeCount, design.ConnectionCount,
		design.ID, expectedRevision)
	if err != nil {
		return errors.DatabaseError("failed to save design", err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := r.GetDesign(ctx, design.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.NotFoundError(errors.CodeDesignNotFound, "design", design.ID)
		}
		return errors.ConflictError(errors.CodeRevisionMismatch,
			"design was modified concurrently; re-fetch and retry").
			WithContext("design_id", design.ID)
	}

	design.Revision = expectedRevision + 1
	return nil
}

func (r *PostgresRepository) DeleteDesign(ctx context.Context, id string) error {
	return r.db.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM workflow_executions WHERE design_id = $1`, id); err != nil {
			return errors.DatabaseError("failed to delete executions", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM workflow_versions WHERE design_id = $1`, id); err != nil {
			return errors.DatabaseError("failed to delete versions", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM workflow_designs WHERE id = $1`, id)
		if err != nil {
			return errors.DatabaseError("failed to delete design", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFoundError(errors.CodeDesignNotFound, "design", id)
		}
		return nil
	})
}

func (r *PostgresRepository) CountDesigns(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, "count", "workflow_designs",
		`SELECT COUNT(*) FROM workflow_designs`).Scan(&total)
	if err != nil {
		return 0, errors.DatabaseError("failed to count designs", err)
	}
	return total, nil
}

func (r *PostgresRepository) UpdateDesignStats(ctx context.Context, designID string, executionCount int64, successRate float64) error {
	tag, err := r.db.Exec(ctx, "update", "workflow_designs",
		`UPDATE workflow_designs SET execution_count = $1, success_rate = $2 WHERE id = $3`,
		executionCount, successRate, designID)
	if err != nil {
		return errors.DatabaseError("failed to update design stats", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(errors.CodeDesignNotFound, "design", designID)
	}
	return nil
}

const versionColumns = `id, design_id, version_name, description, nodes_snapshot,
	connections_snapshot, canvas_snapshot, changes, tags, is_current, created_by, created_at`

func (r *PostgresRepository) CreateVersion(ctx context.Context, version *Version) error {
	nodes, err := json.Marshal(version.NodesSnapshot)
	if err != nil {
		return errors.InternalError("failed to marshal version nodes", err)
	}
	connections, err := json.Marshal(version.ConnectionsSnapshot)
	if err != nil {
		return errors.InternalError("failed to marshal version connections", err)
	}
	canvas, err := json.Marshal(version.CanvasSnapshot)
	if err != nil {
		return errors.InternalError("failed to marshal version canvas", err)
	}
	changes, err := json.Marshal(version.Changes)
	if err != nil {
		return errors.InternalError("failed to marshal version changes", err)
	}

	query := fmt.Sprintf(`INSERT INTO workflow_versions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, versionColumns)

	_, err = r.db.Exec(ctx, "insert", "workflow_versions", query,
		version.ID, version.DesignID, version.Name, version.Description,
		nodes, connections, canvas, changes, version.Tags,
		version.IsCurrent, version.CreatedBy, version.CreatedAt)
	if err != nil {
		return errors.DatabaseError("failed to create version", err)
	}
	return nil
}

func (r *PostgresRepository) GetVersion(ctx context.Context, id string) (*Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_versions WHERE id = $1`, versionColumns)
	row := r.db.QueryRow(ctx, "select", "workflow_versions", query, id)
	return scanVersion(row)
}

func (r *PostgresRepository) ListVersions(ctx context.Context, designID string) ([]*Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_versions WHERE design_id = $1 ORDER BY created_at DESC`, versionColumns)
	rows, err := r.db.Query(ctx, "select", "workflow_versions", query, designID)
	if err != nil {
		return nil, errors.DatabaseError("failed to list versions", err)
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, version)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountVersions(ctx context.Context, designID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, "count", "workflow_versions",
		`SELECT COUNT(*) FROM workflow_versions WHERE design_id = $1`, designID).Scan(&total)
	if err != nil {
		return 0, errors.DatabaseError("failed to count versions", err)
	}
	return total, nil
}

// SetCurrentVersion swaps the is_current flag inside one transaction so no
// reader ever sees zero or two current versions.
func (r *PostgresRepository) SetCurrentVersion(ctx context.Context, designID, versionID string) error {
	return r.db.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE workflow_versions SET is_current = FALSE WHERE design_id = $1 AND is_current`, designID); err != nil {
			return errors.DatabaseError("failed to clear current version", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE workflow_versions SET is_current = TRUE WHERE id = $1 AND design_id = $2`,
			versionID, designID)
		if err != nil {
			return errors.DatabaseError("failed to set current version", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFoundError(errors.CodeVersionNotFound, "version", versionID)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE workflow_designs SET current_version_id = $1 WHERE id = $2`,
			versionID, designID); err != nil {
			return errors.DatabaseError("failed to update design version pointer", err)
		}
		return nil
	})
}

const executionColumns = `id, design_id, version_id, execution_id, status, input_data,
	output_data, logs, error_message, started_at, completed_at, duration_ms,
	current_node, context`

func (r *PostgresRepository) CreateExecution(ctx context.Context, execution *Execution) error {
	input, output, logs, execCtx, err := marshalExecution(execution)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO workflow_executions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, executionColumns)

	_, err = r.db.Exec(ctx, "insert", "workflow_executions", query,
		execution.ID, execution.DesignID, execution.VersionID, execution.ExecutionID,
		execution.Status, input, output, logs, execution.ErrorMsg,
		execution.StartedAt, execution.CompletedAt, execution.DurationMS,
		execution.CurrentNode, execCtx)
	if err != nil {
		return errors.DatabaseError("failed to create execution", err)
	}
	return nil
}

func (r *PostgresRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_executions WHERE id = $1 OR execution_id = $1`, executionColumns)
	row := r.db.QueryRow(ctx, "select", "workflow_executions", query, id)
	return scanExecution(row)
}

func (r *PostgresRepository) UpdateExecution(ctx context.Context, execution *Execution) error {
	input, output, logs, execCtx, err := marshalExecution(execution)
	if err != nil {
		return err
	}

	// Terminal records are immutable: the status guard keeps a late engine
	// write from resurrecting a run that was already settled.
	query := `UPDATE workflow_executions SET
		status = $1, input_data = $2, output_data = $3, logs = $4,
		error_message = $5, completed_at = $6, duration_ms = $7,
		current_node = $8, context = $9
		WHERE id = $10 AND status IN ('pending', 'running')`

	tag, err := r.db.Exec(ctx, "update", "workflow_executions", query,
		execution.Status, input, output, logs, execution.ErrorMsg,
		execution.CompletedAt, execution.DurationMS, execution.CurrentNode,
		execCtx, execution.ID)
	if err != nil {
		return errors.DatabaseError("failed to update execution", err)
	}
	if tag.RowsAffected() == 0 {
		stored, err := r.GetExecution(ctx, execution.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return errors.NotFoundError(errors.CodeRunNotFound, "execution", execution.ID)
		}
		return errors.ConflictError(errors.CodeRunFinished,
			"execution already reached a terminal state").
			WithContext("execution_id", execution.ID).
			WithContext("status", string(stored.Status))
	}
	return nil
}

func (r *PostgresRepository) ListExecutions(ctx context.Context, filter *ExecutionFilter) ([]*Execution, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	idx := 1

	if filter.DesignID != "" {
		where += fmt.Sprintf(" AND design_id = $%d", idx)
		args = append(args, filter.DesignID)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM workflow_executions " + where
	if err := r.db.QueryRow(ctx, "count", "workflow_executions", countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("failed to count executions", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM workflow_executions %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		executionColumns, where, idx, idx+1)
	args = append(args, filter.PageSize, filter.GetOffset())

	rows, err := r.db.Query(ctx, "select", "workflow_executions", query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("failed to list executions", err)
	}
	defer rows.Close()

	var out []*Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, execution)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) CountActiveExecutions(ctx context.Context, designID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, "count", "workflow_executions",
		`SELECT COUNT(*) FROM workflow_executions WHERE design_id = $1 AND status IN ('pending', 'running')`,
		designID).Scan(&total)
	if err != nil {
		return 0, errors.DatabaseError("failed to count active executions", err)
	}
	return total, nil
}

func (r *PostgresRepository) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "delete", "workflow_executions",
		`DELETE FROM workflow_executions
		 WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, errors.DatabaseError("failed to prune executions", err)
	}
	return tag.RowsAffected(), nil
}

const templateColumns = `id, name, description, category, nodes, connections, canvas_config, created_at`

func (r *PostgresRepository) CreateTemplate(ctx context.Context, template *Template) error {
	nodes, err := json.Marshal(template.Nodes)
	if err != nil {
		return errors.InternalError("failed to marshal template nodes", err)
	}
	connections, err := json.Marshal(template.Connections)
	if err != nil {
		return errors.InternalError("failed to marshal template connections", err)
	}
	canvas, err := json.Marshal(template.CanvasConfig)
	if err != nil {
		return errors.InternalError("failed to marshal template canvas", err)
	}

	query := fmt.Sprintf(`INSERT INTO workflow_templates (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, templateColumns)
	_, err = r.db.Exec(ctx, "insert", "workflow_templates", query,
		template.ID, template.Name, template.Description, template.Category,
		nodes, connections, canvas, template.CreatedAt)
	if err != nil {
		return errors.DatabaseError("failed to create template", err)
	}
	return nil
}

func (r *PostgresRepository) GetTemplate(ctx context.Context, id string) (*Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_templates WHERE id = $1`, templateColumns)
	row := r.db.QueryRow(ctx, "select", "workflow_templates", query, id)
	return scanTemplate(row)
}

func (r *PostgresRepository) ListTemplates(ctx context.Context, filter *TemplateFilter) ([]*Template, int64, error) {
	where := "WHERE 1=1"
	args := []any{}
	idx := 1

	if filter.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", idx)
		args = append(args, filter.Category)
		idx++
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM workflow_templates " + where
	if err := r.db.QueryRow(ctx, "count", "workflow_templates", countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.DatabaseError("failed to count templates", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM workflow_templates %s ORDER BY name LIMIT $%d OFFSET $%d`,
		templateColumns, where, idx, idx+1)
	args = append(args, filter.PageSize, filter.GetOffset())

	rows, err := r.db.Query(ctx, "select", "workflow_templates", query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("failed to list templates", err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, template)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) ListDesignIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "select", "workflow_designs",
		`SELECT id FROM workflow_designs`)
	if err != nil {
		return nil, errors.DatabaseError("failed to list design ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.DatabaseError("failed to scan design id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanning helpers

func marshalGraph(design *Design) (nodes, connections, canvas []byte, err error) {
	if nodes, err = json.Marshal(design.Nodes); err != nil {
		return nil, nil, nil, errors.InternalError("failed to marshal nodes", err)
	}
	if connections, err = json.Marshal(design.Connections); err != nil {
		return nil, nil, nil, errors.InternalError("failed to marshal connections", err)
	}
	if canvas, err = json.Marshal(design.CanvasConfig); err != nil {
		return nil, nil, nil, errors.InternalError("failed to marshal canvas config", err)
	}
	return nodes, connections, canvas, nil
}

func marshalExecution(execution *Execution) (input, output, logs, execCtx []byte, err error) {
	if input, err = json.Marshal(execution.InputData); err != nil {
		return nil, nil, nil, nil, errors.InternalError("failed to marshal input data", err)
	}
	if output, err = json.Marshal(execution.OutputData); err != nil {
		return nil, nil, nil, nil, errors.InternalError("failed to marshal output data", err)
	}
	if logs, err = json.Marshal(execution.Logs); err != nil {
		return nil, nil, nil, nil, errors.InternalError("failed to marshal logs", err)
	}
	if execCtx, err = json.Marshal(execution.Context); err != nil {
		return nil, nil, nil, nil, errors.InternalError("failed to marshal execution context", err)
	}
	return input, output, logs, execCtx, nil
}

func scanDesign(row pgx.Row) (*Design, error) {
	var design Design
	var nodes, connections, canvas []byte

	err := row.Scan(&design.ID, &design.Name, &design.Description, &design.Category,
		&design.Status, &nodes, &connections, &canvas, &design.CurrentVersionID,
		&design.CreatedBy, &design.CreatedAt, &design.UpdatedAt, &design.Revision,
		&design.ExecutionCount, &design.SuccessRate, &design.NodeCount, &design.ConnectionCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan design", err)
	}

	if err := json.Unmarshal(nodes, &design.Nodes); err != nil {
		return nil, errors.InternalError("failed to unmarshal nodes", err)
	}
	if err := json.Unmarshal(connections, &design.Connections); err != nil {
		return nil, errors.InternalError("failed to unmarshal connections", err)
	}
	if err := json.Unmarshal(canvas, &design.CanvasConfig); err != nil {
		return nil, errors.InternalError("failed to unmarshal canvas config", err)
	}
	return &design, nil
}

func scanVersion(row pgx.Row) (*Version, error) {
	var version Version
	var nodes, connections, canvas, changes []byte

	err := row.Scan(&version.ID, &version.DesignID, &version.Name, &version.Description,
		&nodes, &connections, &canvas, &changes, &version.Tags,
		&version.IsCurrent, &version.CreatedBy, &version.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan version", err)
	}

	if err := json.Unmarshal(nodes, &version.NodesSnapshot); err != nil {
		return nil, errors.InternalError("failed to unmarshal version nodes", err)
	}
	if err := json.Unmarshal(connections, &version.ConnectionsSnapshot); err != nil {
		return nil, errors.InternalError("failed to unmarshal version connections", err)
	}
	if err := json.Unmarshal(canvas, &version.CanvasSnapshot); err != nil {
		return nil, errors.InternalError("failed to unmarshal version canvas", err)
	}
	if err := json.Unmarshal(changes, &version.Changes); err != nil {
		return nil, errors.InternalError("failed to unmarshal version changes", err)
	}
	return &version, nil
}

func scanExecution(row pgx.Row) (*Execution, error) {
	var execution Execution
	var input, output, logs, execCtx []byte

	err := row.Scan(&execution.ID, &execution.DesignID, &execution.VersionID,
		&execution.ExecutionID, &execution.Status, &input, &output, &logs,
		&execution.ErrorMsg, &execution.StartedAt, &execution.CompletedAt,
		&execution.DurationMS, &execution.CurrentNode, &execCtx)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan execution", err)
	}

	if err := json.Unmarshal(input, &execution.InputData); err != nil {
		return nil, errors.InternalError("failed to unmarshal input data", err)
	}
	if err := json.Unmarshal(output, &execution.OutputData); err != nil {
		return nil, errors.InternalError("failed to unmarshal output data", err)
	}
	if err := json.Unmarshal(logs, &execution.Logs); err != nil {
		return nil, errors.InternalError("failed to unmarshal logs", err)
	}
	if err := json.Unmarshal(execCtx, &execution.Context); err != nil {
		return nil, errors.InternalError("failed to unmarshal execution context", err)
	}
	return &execution, nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var template Template
	var nodes, connections, canvas []byte

	err := row.Scan(&template.ID, &template.Name, &template.Description,
		&template.Category, &nodes, &connections, &canvas, &template.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to scan template", err)
	}

	if err := json.Unmarshal(nodes, &template.Nodes); err != nil {
		return nil, errors.InternalError("failed to unmarshal template nodes", err)
	}
	if err := json.Unmarshal(connections, &template.Connections); err != nil {
		return nil, errors.InternalError("failed to unmarshal template connections", err)
	}
	if err := json.Unmarshal(canvas, &template.CanvasConfig); err != nil {
		return nil, errors.InternalError("failed to unmarshal template canvas", err)
	}
	return &template, nil
}

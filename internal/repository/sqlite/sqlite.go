package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"vtdsapp/internal/domain"

	_ "modernc.org/sqlite"
)

// planKey is the metadata key holding the current deploy plan
const planKey = "deploy_plan"

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		ssh_host TEXT NOT NULL,
		ssh_port INTEGER NOT NULL DEFAULT 22,
		status TEXT NOT NULL DEFAULT 'pending',
		addresses JSON NOT NULL,
		last_deployed DATETIME,
		last_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		node_id TEXT NOT NULL,
		class TEXT NOT NULL,
		action TEXT NOT NULL,
		artifact TEXT,
		script TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		success INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		total INTEGER NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		violations INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS checks (
		run_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		network TEXT NOT NULL,
		addr TEXT NOT NULL,
		port INTEGER NOT NULL,
		expected INTEGER NOT NULL,
		reachable INTEGER NOT NULL,
		latency_ms INTEGER,
		error TEXT,
		checked_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_node ON deployments(node_id);
	CREATE INDEX IF NOT EXISTS idx_checks_run ON checks(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// UpsertNode inserts or updates a node row
func (r *Repository) UpsertNode(ctx context.Context, node *domain.VirtualNode) error {
	addresses, err := json.Marshal(node.Addresses)
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}

	status := node.Status
	if status == "" {
		status = domain.NodeStatusPending
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO nodes (id, class, ssh_host, ssh_port, status, addresses, last_deployed, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			class = excluded.class,
			ssh_host = excluded.ssh_host,
			ssh_port = excluded.ssh_port,
			addresses = excluded.addresses,
			updated_at = CURRENT_TIMESTAMP
	`, node.ID, string(node.Class), node.SSHHost, node.SSHPort, string(status),
		string(addresses), timePtrToNull(node.LastDeployed), stringToNull(node.LastError))
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", node.ID, err)
	}
	return nil
}

// GetNode returns a node by ID, or nil if not found
func (r *Repository) GetNode(ctx context.Context, id string) (*domain.VirtualNode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class, ssh_host, ssh_port, status, addresses, last_deployed, last_error, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id)

	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return node, nil
}

// ListNodes returns all nodes sorted by ID
func (r *Repository) ListNodes(ctx context.Context) ([]*domain.VirtualNode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, class, ssh_host, ssh_port, status, addresses, last_deployed, last_error, created_at, updated_at
		FROM nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.VirtualNode
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// UpdateNodeStatus updates a node's deployment status. Deployed status
// stamps last_deployed.
func (r *Repository) UpdateNodeStatus(ctx context.Context, id string, status domain.NodeStatus, lastError string) error {
	var deployed sql.NullTime
	if status == domain.NodeStatusDeployed {
		deployed = sql.NullTime{Time: time.Now(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE nodes SET
			status = ?,
			last_error = ?,
			last_deployed = COALESCE(?, last_deployed),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), stringToNull(lastError), deployed, id)
	if err != nil {
		return fmt.Errorf("update node %s status: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("node %s not found", id)
	}
	return nil
}

// SavePlan stores the current deploy plan
func (r *Repository) SavePlan(ctx context.Context, plan *domain.DeployPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, planKey, string(data))
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

// GetPlan returns the stored deploy plan, or nil when the layer has not
// been prepared
func (r *Repository) GetPlan(ctx context.Context) (*domain.DeployPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, planKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var plan domain.DeployPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &plan, nil
}

// ClearPlan removes the stored deploy plan
func (r *Repository) ClearPlan(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, planKey)
	return err
}

// RecordDeployment stores one deployment attempt
func (r *Repository) RecordDeployment(ctx context.Context, dep *domain.Deployment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deployments (id, node_id, class, action, artifact, script, started_at, finished_at, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, dep.ID, dep.NodeID, string(dep.Class), dep.Action,
		stringToNull(dep.Artifact), stringToNull(dep.Script),
		dep.StartedAt, timePtrToNull(dep.FinishedAt), boolToInt(dep.Success), stringToNull(dep.Error))
	if err != nil {
		return fmt.Errorf("record deployment %s: %w", dep.ID, err)
	}
	return nil
}

// ListDeployments returns deployment history, optionally filtered by node,
// newest first
func (r *Repository) ListDeployments(ctx context.Context, nodeID string) ([]*domain.Deployment, error) {
	query := `
		SELECT id, node_id, class, action, artifact, script, started_at, finished_at, success, error
		FROM deployments
	`
	args := []any{}
	if nodeID != "" {
		query += " WHERE node_id = ?"
		args = append(args, nodeID)
	}
	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var deps []*domain.Deployment
	for rows.Next() {
		var (
			dep              domain.Deployment
			class            string
			artifact, script sql.NullString
			finished         sql.NullTime
			success          int
			errText          sql.NullString
		)
		if err := rows.Scan(&dep.ID, &dep.NodeID, &class, &dep.Action, &artifact, &script,
			&dep.StartedAt, &finished, &success, &errText); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		dep.Class = domain.NodeClass(class)
		dep.Artifact = nullToString(artifact)
		dep.Script = nullToString(script)
		dep.FinishedAt = nullToTimePtr(finished)
		dep.Success = success != 0
		dep.Error = nullToString(errText)
		deps = append(deps, &dep)
	}
	return deps, rows.Err()
}

// SaveRun stores a verification run and its checks in one transaction
func (r *Repository) SaveRun(ctx context.Context, run *domain.VerificationRun) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, started_at, finished_at, total, passed, violations, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			total = excluded.total,
			passed = excluded.passed,
			violations = excluded.violations,
			errors = excluded.errors
	`, run.ID, string(run.Source), run.StartedAt, timePtrToNull(run.FinishedAt),
		run.Total, run.Passed, run.Violations, run.Errors)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM checks WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear checks for run %s: %w", run.ID, err)
	}

	for _, check := range run.Checks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checks (run_id, from_id, to_id, network, addr, port, expected, reachable, latency_ms, error, checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, check.FromID, check.ToID, check.Network, check.Addr, check.Port,
			boolToInt(check.Expected), boolToInt(check.Reachable),
			check.LatencyMS, stringToNull(check.Error), check.CheckedAt)
		if err != nil {
			return fmt.Errorf("save check: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its checks, or nil if not found
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.VerificationRun, error) {
	run, err := r.scanRunRow(r.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, finished_at, total, passed, violations, errors
		FROM runs WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT from_id, to_id, network, addr, port, expected, reachable, latency_ms, error, checked_at
		FROM checks WHERE run_id = ? ORDER BY from_id, to_id, network
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			check               domain.CheckResult
			expected, reachable int
			latency             sql.NullInt64
			errText             sql.NullString
		)
		if err := rows.Scan(&check.FromID, &check.ToID, &check.Network, &check.Addr, &check.Port,
			&expected, &reachable, &latency, &errText, &check.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		check.RunID = id
		check.Expected = expected != 0
		check.Reachable = reachable != 0
		if latency.Valid {
			check.LatencyMS = latency.Int64
		}
		check.Error = nullToString(errText)
		run.Checks = append(run.Checks, check)
	}
	return run, rows.Err()
}

// ListRuns returns recent runs without their checks, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*domain.VerificationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, total, passed, violations, errors
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.VerificationRun
	for rows.Next() {
		run, err := r.scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

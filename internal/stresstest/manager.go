package stresstest

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/trackload/internal/migrations"
)

// Manager handles load run persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens the SQLite database at dbPath and migrates it.
// ":memory:" gives a throwaway store.
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun creates a new run record
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO load_runs
		(profile_name, env, base_url, scenarios, x_load, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ProfileName, run.Env, run.BaseURL, run.Scenarios, run.XLoad, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun stores the final state and totals of a run
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE load_runs
		SET completed_at = ?, status = ?, total_iterations = ?, dropped_iterations = ?,
		    total_requests = ?, failed_requests = ?, checks_passed = ?, checks_failed = ?,
		    thresholds_passed = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.TotalIterations, run.DroppedIterations,
		run.TotalRequests, run.FailedRequests, run.ChecksPassed, run.ChecksFailed,
		run.ThresholdsPassed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}
	return nil
}

const runColumns = `
	id, profile_name, env, base_url, scenarios, x_load, started_at, completed_at, status,
	total_iterations, dropped_iterations, total_requests, failed_requests,
	checks_passed, checks_failed, thresholds_passed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	err := row.Scan(&run.ID, &run.ProfileName, &run.Env, &run.BaseURL, &run.Scenarios, &run.XLoad,
		&run.StartedAt, &completedAt, &run.Status,
		&run.TotalIterations, &run.DroppedIterations, &run.TotalRequests, &run.FailedRequests,
		&run.ChecksPassed, &run.ChecksFailed, &run.ThresholdsPassed)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	run, err := scanRun(m.db.QueryRow(`SELECT `+runColumns+` FROM load_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM load_runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run with its samples and checks
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM load_samples WHERE run_id = ?",
		"DELETE FROM load_checks WHERE run_id = ?",
		"DELETE FROM load_runs WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete run %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveMetricsBatch saves multiple samples in a single transaction
func (m *Manager) SaveMetricsBatch(metrics []*Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO load_samples
		(run_id, timestamp, scenario, name, method, status_code, duration_ms, failed, error_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range metrics {
		_, err := stmt.Exec(metric.RunID, metric.Timestamp, metric.Scenario, metric.Name, metric.Method,
			metric.StatusCode, metric.DurationMs, metric.Failed, metric.ErrorCode, metric.ErrorMessage)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// SaveChecksBatch saves multiple check results in a single transaction
func (m *Manager) SaveChecksBatch(checks []*CheckRecord) error {
	if len(checks) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO load_checks (run_id, timestamp, scenario, name, passed)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range checks {
		if _, err := stmt.Exec(c.RunID, c.Timestamp, c.Scenario, c.Name, c.Passed); err != nil {
			return fmt.Errorf("failed to insert check: %w", err)
		}
	}

	return tx.Commit()
}

// GetMetrics retrieves all samples of a run in time order
func (m *Manager) GetMetrics(runID int64) ([]*Metric, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, timestamp, scenario, name, method, status_code, duration_ms, failed,
		       COALESCE(error_code, 0), COALESCE(error_message, '')
		FROM load_samples
		WHERE run_id = ?
		ORDER BY timestamp, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		metric := &Metric{}
		err := rows.Scan(&metric.ID, &metric.RunID, &metric.Timestamp, &metric.Scenario, &metric.Name,
			&metric.Method, &metric.StatusCode, &metric.DurationMs, &metric.Failed,
			&metric.ErrorCode, &metric.ErrorMessage)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}

// GetNameStats rebuilds the per-name timing summary of a stored run
func (m *Manager) GetNameStats(runID int64) ([]NameStats, error) {
	rows, err := m.db.Query(`
		SELECT name, duration_ms, failed
		FROM load_samples
		WHERE run_id = ?
		ORDER BY name, id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NameStats
	var current string
	var stats *Stats
	for rows.Next() {
		var name string
		var duration int64
		var failed bool
		if err := rows.Scan(&name, &duration, &failed); err != nil {
			return nil, err
		}
		if stats == nil || name != current {
			if stats != nil {
				out = append(out, stats.Summarize(current))
			}
			current = name
			stats = NewStats()
		}
		stats.AddResult(duration, failed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats != nil {
		out = append(out, stats.Summarize(current))
	}
	return out, nil
}

// GetCheckStats returns pass/fail counts per check name of a stored run
func (m *Manager) GetCheckStats(runID int64) ([]CheckStats, error) {
	rows, err := m.db.Query(`
		SELECT name,
		       SUM(CASE WHEN passed THEN 1 ELSE 0 END),
		       SUM(CASE WHEN passed THEN 0 ELSE 1 END)
		FROM load_checks
		WHERE run_id = ?
		GROUP BY name
		ORDER BY name
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckStats
	for rows.Next() {
		var c CheckStats
		if err := rows.Scan(&c.Name, &c.Passed, &c.Failed); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

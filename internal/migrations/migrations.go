package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add per-name indexes for sample aggregation",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_samples_run_name ON load_samples(run_id, name);
			CREATE INDEX IF NOT EXISTS idx_load_samples_run_scenario ON load_samples(run_id, scenario);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_samples_run_name;
			DROP INDEX IF EXISTS idx_load_samples_run_scenario;
		`,
	},
	{
		Version: 2,
		Name:    "Add check aggregation index",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_checks_run_name ON load_checks(run_id, name, passed);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_checks_run_name;
		`,
	},
}

// InitSchema creates all tables required across all modules
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_name TEXT NOT NULL,
		env TEXT NOT NULL,
		base_url TEXT NOT NULL,
		scenarios TEXT NOT NULL,
		x_load REAL NOT NULL DEFAULT 1,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		total_iterations INTEGER DEFAULT 0,
		dropped_iterations INTEGER DEFAULT 0,
		total_requests INTEGER DEFAULT 0,
		failed_requests INTEGER DEFAULT 0,
		checks_passed INTEGER DEFAULT 0,
		checks_failed INTEGER DEFAULT 0,
		thresholds_passed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_load_runs_status ON load_runs(status);

	CREATE TABLE IF NOT EXISTS load_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		scenario TEXT NOT NULL,
		name TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		error_code INTEGER DEFAULT 0,
		error_message TEXT,
		FOREIGN KEY (run_id) REFERENCES load_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_samples_run_id ON load_samples(run_id);

	CREATE TABLE IF NOT EXISTS load_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		scenario TEXT NOT NULL,
		name TEXT NOT NULL,
		passed INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES load_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_checks_run_id ON load_checks(run_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}
		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}

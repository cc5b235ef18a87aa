package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"myutils/internal/sweep"
)

// DeletionDB manages the SQLite database of sweep history
type DeletionDB struct {
	db *sql.DB
}

// DeletionRecord represents one sweep outcome
type DeletionRecord struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Root         string    `json:"root"`
	Path         string    `json:"path"`
	FileName     string    `json:"file_name"`
	ObjectType   string    `json:"object_type"`
	Size         int64     `json:"size"`
	Reason       string    `json:"reason"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewDeletionDB opens (creating if needed) the database and initializes schema
func NewDeletionDB(dbPath string) (*DeletionDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto makes the driver parse DATETIME columns into time.Time;
	// the busy timeout lets concurrent writers wait on the WAL lock.
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping does not create the file; a query does
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	ddb := &DeletionDB{db: db}
	if err = ddb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return ddb, nil
}

func (d *DeletionDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		root TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		reason TEXT,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_root ON deletions(root);
	CREATE INDEX IF NOT EXISTS idx_path ON deletions(path);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return err
	}
	return d.migrateRunID()
}

// migrateRunID adds the run_id column to databases created at schema v1
func (d *DeletionDB) migrateRunID() error {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('deletions') WHERE name = 'run_id'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := d.db.Exec(`ALTER TABLE deletions ADD COLUMN run_id TEXT`); err != nil {
			return fmt.Errorf("add run_id column: %w", err)
		}
	}

	_, err = d.db.Exec(`
	CREATE INDEX IF NOT EXISTS idx_run_id ON deletions(run_id);
	INSERT OR IGNORE INTO schema_version (version) VALUES (2);
	`)
	return err
}

// RecordOutcome inserts one sweep outcome; it satisfies sweep.Recorder
func (d *DeletionDB) RecordOutcome(runID, root string, o sweep.Outcome) error {
	ts := o.At
	if ts.IsZero() {
		ts = time.Now()
	}
	// Stored as text; a single zone keeps range comparisons lexical
	ts = ts.UTC()

	var errMsg sql.NullString
	if o.Err != nil {
		errMsg = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	_, err := d.db.Exec(`
	INSERT INTO deletions (
		run_id, timestamp, action, root, path, file_name, object_type, size, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ts,
		string(o.Action),
		root,
		o.Path,
		filepath.Base(o.Path),
		o.ObjectType,
		o.Size,
		o.Reason,
		errMsg,
	)
	return err
}

// Close closes the database connection
func (d *DeletionDB) Close() error {
	return d.db.Close()
}

// Vacuum compacts the database file
func (d *DeletionDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

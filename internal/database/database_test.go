package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"myutils/internal/sweep"
)

func openTestDB(t *testing.T) *DeletionDB {
	t.Helper()
	db, err := NewDeletionDB(filepath.Join(t.TempDir(), "history", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func outcome(path string, action sweep.Action, objectType string, size int64, at time.Time) sweep.Outcome {
	return sweep.Outcome{
		Path:       path,
		ObjectType: objectType,
		Action:     action,
		Size:       size,
		Reason:     sweep.ReasonSuffixMatch,
		At:         at,
	}
}

// TestDatabaseCreation verifies the file and parent directory are created
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "deletions.db")

	db, err := NewDeletionDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("Database file not created at %s: %v", dbPath, err)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

func TestRecordOutcomeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	ok := outcome("/m2/org/a.jar.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 120, now)
	if err := db.RecordOutcome("run-1", "/m2", ok); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	failed := outcome("/m2/org/b.pom.lastUpdated", sweep.ActionError, sweep.ObjectFile, 30, now.Add(time.Second))
	failed.Err = os.ErrPermission
	if err := db.RecordOutcome("run-1", "/m2", failed); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	records, err := db.GetRecentDeletions(10)
	if err != nil {
		t.Fatalf("GetRecentDeletions failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	// Newest first
	r := records[0]
	if r.Path != failed.Path || r.Action != "ERROR" || r.ErrorMessage != os.ErrPermission.Error() {
		t.Errorf("unexpected newest record: %+v", r)
	}
	r = records[1]
	if r.Root != "/m2" || r.FileName != "a.jar.lastUpdated" || r.Size != 120 || r.ObjectType != "file" || r.Reason != "suffix_match" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, expected empty", r.ErrorMessage)
	}
	if d := r.Timestamp.Sub(now); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Timestamp = %v, expected %v", r.Timestamp, now)
	}
}

func TestQueryMethods(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	fixtures := []struct {
		run  string
		root string
		o    sweep.Outcome
	}{
		{"run-m2", "/m2", outcome("/m2/a/x.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 100, now)},
		{"run-m2", "/m2", outcome("/m2/a", sweep.ActionDelete, sweep.ObjectEmptyDir, 0, now)},
		{"run-m2", "/m2", outcome("/m2/b/y.lastUpdated", sweep.ActionSkip, sweep.ObjectFile, 50, now)},
		{"run-cache", "/cache", outcome("/cache/z.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 7, now)},
		{"run-cache", "/cache", outcome("/cache/w.lastUpdated", sweep.ActionDryRun, sweep.ObjectFile, 9, now)},
	}
	for _, f := range fixtures {
		if err := db.RecordOutcome(f.run, f.root, f.o); err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}

	t.Run("ByAction", func(t *testing.T) {
		records, err := db.GetDeletionsByAction("DELETE")
		if err != nil {
			t.Fatalf("GetDeletionsByAction failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 DELETE records, got %d", len(records))
		}
	})

	t.Run("ByRun", func(t *testing.T) {
		records, err := db.GetDeletionsByRun("run-m2")
		if err != nil {
			t.Fatalf("GetDeletionsByRun failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 records for run-m2, got %d", len(records))
		}
		// Insertion order: the file before the directory it emptied
		if records[0].Path != "/m2/a/x.lastUpdated" || records[1].Path != "/m2/a" {
			t.Errorf("unexpected order: %s, %s", records[0].Path, records[1].Path)
		}
		if records[0].RunID != "run-m2" {
			t.Errorf("RunID = %q, expected run-m2", records[0].RunID)
		}
	})

	t.Run("ByPath", func(t *testing.T) {
		records, err := db.GetDeletionsByPath("/m2/%")
		if err != nil {
			t.Fatalf("GetDeletionsByPath failed: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("Expected 3 records under /m2, got %d", len(records))
		}
	})

	t.Run("ByRoot", func(t *testing.T) {
		records, err := db.GetDeletionsByRoot("/cache")
		if err != nil {
			t.Fatalf("GetDeletionsByRoot failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 records for /cache, got %d", len(records))
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := db.GetDeletionStats(30)
		if err != nil {
			t.Fatalf("GetDeletionStats failed: %v", err)
		}
		if stats.TotalDeletions != 3 || stats.TotalSkipped != 1 || stats.TotalDryRun != 1 || stats.TotalErrors != 0 {
			t.Errorf("unexpected totals: %+v", stats)
		}
		// Only files count towards freed space
		if stats.TotalSpaceFreed != 107 {
			t.Errorf("TotalSpaceFreed = %d, expected 107", stats.TotalSpaceFreed)
		}
		if stats.ByObjectType["file"] != 2 || stats.ByObjectType["empty_directory"] != 1 {
			t.Errorf("ByObjectType = %v", stats.ByObjectType)
		}
		if stats.ByRoot["/m2"] != 2 || stats.ByRoot["/cache"] != 1 {
			t.Errorf("ByRoot = %v", stats.ByRoot)
		}
	})
}

func TestDeleteOldRecords(t *testing.T) {
	db := openTestDB(t)

	old := outcome("/m2/old.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 1, time.Now().AddDate(0, 0, -90))
	recent := outcome("/m2/new.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 1, time.Now())
	for _, o := range []sweep.Outcome{old, recent} {
		if err := db.RecordOutcome("run-1", "/m2", o); err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}

	n, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteOldRecords removed %d rows, expected 1", n)
	}

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

// TestConcurrentWrites checks WAL mode serializes writers without errors
func TestConcurrentWrites(t *testing.T) {
	db := openTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				o := outcome(filepath.Join("/m2", "w", string(rune('a'+worker)), "f.lastUpdated"),
					sweep.ActionDelete, sweep.ObjectFile, int64(j), time.Now())
				if err := db.RecordOutcome("run-1", "/m2", o); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	records, err := db.GetDeletionsByRoot("/m2")
	if err != nil {
		t.Fatalf("GetDeletionsByRoot failed: %v", err)
	}
	if len(records) != 40 {
		t.Errorf("Expected 40 records, got %d", len(records))
	}
}

func TestDatabaseErrorHandling(t *testing.T) {
	if _, err := NewDeletionDB("/dev/null/invalid/path/db.sqlite"); err == nil {
		t.Error("Expected error for invalid database path")
	}
}

// TestMigratesV1Schema opens a database created before run IDs were recorded
func TestMigratesV1Schema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	_, err = raw.Exec(`
	CREATE TABLE deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
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
	INSERT INTO deletions (timestamp, action, root, path, object_type, size)
	VALUES ('2024-01-02 03:04:05+00:00', 'DELETE', '/m2', '/m2/old.lastUpdated', 'file', 1);
	`)
	if err != nil {
		t.Fatalf("Failed to create v1 schema: %v", err)
	}
	raw.Close()

	db, err := NewDeletionDB(dbPath)
	if err != nil {
		t.Fatalf("NewDeletionDB on v1 schema failed: %v", err)
	}
	defer db.Close()

	if err := db.RecordOutcome("run-2", "/m2", outcome("/m2/new.lastUpdated", sweep.ActionDelete, sweep.ObjectFile, 2, time.Now())); err != nil {
		t.Fatalf("RecordOutcome after migration failed: %v", err)
	}

	records, err := db.GetDeletionsByRoot("/m2")
	if err != nil {
		t.Fatalf("GetDeletionsByRoot failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].RunID != "run-2" || records[1].RunID != "" {
		t.Errorf("unexpected run IDs: %q, %q", records[0].RunID, records[1].RunID)
	}

	var version int
	if err := db.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, expected 2", version)
	}
}

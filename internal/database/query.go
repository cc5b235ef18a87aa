package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, run_id, timestamp, action, root, path, file_name, object_type, size,
	       reason, error_message
	FROM deletions
`

// GetRecentDeletions returns the N most recent outcomes
func (d *DeletionDB) GetRecentDeletions(limit int) ([]DeletionRecord, error) {
	return d.queryDeletions(selectColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`, limit)
}

// GetDeletionsByAction returns outcomes filtered by action (DELETE, DRY_RUN, SKIP, ERROR)
func (d *DeletionDB) GetDeletionsByAction(action string) ([]DeletionRecord, error) {
	return d.queryDeletions(selectColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC`, action)
}

// GetDeletionsByPath returns outcomes whose path matches a SQL LIKE pattern
func (d *DeletionDB) GetDeletionsByPath(pathPattern string) ([]DeletionRecord, error) {
	return d.queryDeletions(selectColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC`, pathPattern)
}

// GetDeletionsByRoot returns outcomes of sweeps of one root
func (d *DeletionDB) GetDeletionsByRoot(root string) ([]DeletionRecord, error) {
	return d.queryDeletions(selectColumns+`
	WHERE root = ?
	ORDER BY timestamp DESC, id DESC`, root)
}

// GetDeletionsByRun returns the outcomes of one sweep in the order they happened
func (d *DeletionDB) GetDeletionsByRun(runID string) ([]DeletionRecord, error) {
	return d.queryDeletions(selectColumns+`
	WHERE run_id = ?
	ORDER BY id ASC`, runID)
}

// GetTotalSpaceFreed returns bytes of files actually deleted in a time range
func (d *DeletionDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	var total int64
	err := d.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM deletions
	WHERE action = 'DELETE' AND object_type = 'file' AND timestamp BETWEEN ? AND ?
	`, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// DeletionStats holds aggregated statistics
type DeletionStats struct {
	TotalDeletions  int            `json:"total_deletions"`
	TotalDryRun     int            `json:"total_dry_run"`
	TotalSkipped    int            `json:"total_skipped"`
	TotalErrors     int            `json:"total_errors"`
	TotalSpaceFreed int64          `json:"total_space_freed"`
	ByObjectType    map[string]int `json:"by_object_type"`
	ByRoot          map[string]int `json:"by_root"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
}

// GetDeletionStats returns statistics for the last N days
func (d *DeletionDB) GetDeletionStats(days int) (*DeletionStats, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	stats := &DeletionStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeletions, &stats.TotalDryRun, &stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	if stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now); err != nil {
		return nil, err
	}

	if stats.ByObjectType, err = d.countDeleted("object_type", since); err != nil {
		return nil, err
	}
	if stats.ByRoot, err = d.countDeleted("root", since); err != nil {
		return nil, err
	}

	return stats, nil
}

// countDeleted groups DELETE outcomes since a time by a fixed column name
func (d *DeletionDB) countDeleted(column string, since time.Time) (map[string]int, error) {
	rows, err := d.db.Query(`
	SELECT `+column+`, COUNT(*)
	FROM deletions
	WHERE action = 'DELETE' AND timestamp >= ?
	GROUP BY `+column, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// DeleteOldRecords removes records older than the given number of days
func (d *DeletionDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM deletions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *DeletionDB) queryDeletions(query string, args ...interface{}) ([]DeletionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DeletionRecord
	for rows.Next() {
		var r DeletionRecord
		var runID, fileName, reason, errMsg sql.NullString

		if err := rows.Scan(
			&r.ID, &runID, &r.Timestamp, &r.Action, &r.Root, &r.Path, &fileName,
			&r.ObjectType, &r.Size, &reason, &errMsg,
		); err != nil {
			return nil, err
		}

		r.RunID = runID.String
		r.FileName = fileName.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String
		records = append(records, r)
	}

	return records, rows.Err()
}

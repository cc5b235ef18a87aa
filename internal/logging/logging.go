package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"myutils/internal/config"
)

const logFile = "myutils.log"

// NewWithWriter is NewWithConfig with w in place of stdout
func NewWithWriter(w io.Writer, cfg *config.Config) *log.Logger {
	return newLogger(w, cfg)
}

// NewWithConfig creates a logger that also appends to <logging.dir>/myutils.log
// when a log directory is configured, rotating the file once it is older than
// logging.rotation_days.
func NewWithConfig(cfg *config.Config) *log.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(stdout io.Writer, cfg *config.Config) *log.Logger {
	if cfg == nil || cfg.Logging.Dir == "" {
		return log.New(stdout, "", log.LstdFlags|log.Lmicroseconds)
	}

	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", cfg.Logging.Dir, err)
	}

	filePath := filepath.Join(cfg.Logging.Dir, logFile)

	rotateDays := 30
	if cfg.Logging.RotationDays > 0 {
		rotateDays = cfg.Logging.RotationDays
	}
	rotateLogsIfNeeded(filePath, rotateDays, time.Now())

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(stdout, "", log.LstdFlags|log.Lmicroseconds)
	}

	mw := io.MultiWriter(stdout, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds)
}

// rotateLogsIfNeeded renames the log aside once its mtime passes the cutoff
func rotateLogsIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		log.Printf("failed to rotate log file: %v", err)
		return
	}

	cleanupOldLogs(logPath, rotationDays, now)
}

// cleanupOldLogs removes rotated logs once they have outlived a second
// rotation window
func cleanupOldLogs(logPath string, rotationDays int, now time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoffTime := now.AddDate(0, 0, -2*rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(dir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}

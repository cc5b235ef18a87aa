package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"myutils/internal/config"
	"myutils/internal/database"
	"myutils/internal/disk"
	"myutils/internal/limiter"
	"myutils/internal/metrics"
	"myutils/internal/sweep"
)

// Summary totals one cycle over every configured root
type Summary struct {
	Results      []*sweep.Result
	FilesDeleted int
	DirsDeleted  int
	BytesFreed   int64
	Errors       int
	Skipped      int
}

func (s *Summary) add(r *sweep.Result) {
	s.Results = append(s.Results, r)
	s.FilesDeleted += r.FilesDeleted
	s.DirsDeleted += r.DirsDeleted
	s.BytesFreed += r.BytesFreed
	s.Errors += r.Errors
	s.Skipped += r.Skipped
}

func RunOnce(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Summary, error) {
	return RunOnceWithDB(ctx, cfg, logger, nil)
}

// RunOnceWithDB sweeps each root in cfg.Clean.Roots in order. A root the
// sweep refuses to start on (missing, protected) does not stop the others;
// those errors are joined into the returned error.
func RunOnceWithDB(ctx context.Context, cfg *config.Config, logger *log.Logger, db *database.DeletionDB) (*Summary, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Initialize CPU limiter if configured
	var cpuLimiter *limiter.CPULimiter
	if cfg.ResourceLimits.MaxCPUPercent > 0 {
		cpuLimiter = limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)
	}

	sweeper := sweep.NewSweeper(logger, sweep.Options{
		DryRun:         cfg.Clean.DryRun,
		KeepRoot:       cfg.Clean.KeepRoot,
		ProtectedPaths: cfg.Clean.ProtectedPaths,
	})
	sweeper.SetLimiter(cpuLimiter)
	if db != nil {
		sweeper.SetRecorder(db)
	}

	start := time.Now()
	summary := &Summary{}
	var errs []error

	for _, root := range cfg.Clean.Roots {
		result, err := sweeper.Clean(ctx, root, cfg.Clean.Suffix)
		if result != nil {
			summary.add(result)
			metrics.ObserveRootSweep(result.Duration)
			updateFreeSpaceMetrics(result.Root, logger)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				errs = append(errs, ctxErr)
				break
			}
			metrics.SweepErrorsTotal.Inc()
			logger.Printf("[ERROR] sweep of %s failed: %v", root, err)
			errs = append(errs, err)
		}
	}

	elapsed := time.Since(start)
	metrics.RecordSweepRun(start)

	logger.Printf("cycle complete: roots=%d files_deleted=%d dirs_deleted=%d freed=%d bytes errors=%d skipped=%d duration=%.3fs",
		len(cfg.Clean.Roots), summary.FilesDeleted, summary.DirsDeleted, summary.BytesFreed,
		summary.Errors, summary.Skipped, elapsed.Seconds())

	return summary, errors.Join(errs...)
}

func Run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	return RunWithDB(ctx, cfg, logger, nil)
}

// RunWithDB sweeps immediately, then again every cfg.Interval() and whenever
// the metrics server's /trigger endpoint fires, until ctx is cancelled. An
// interval of zero runs a single cycle.
func RunWithDB(ctx context.Context, cfg *config.Config, logger *log.Logger, db *database.DeletionDB) error {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		return errors.New("nil config")
	}

	if _, err := RunOnceWithDB(ctx, cfg, logger, db); err != nil {
		if cfg.Interval() <= 0 || ctx.Err() != nil {
			return err
		}
		logger.Printf("[ERROR] error running cycle: %v", err)
	}
	if cfg.Interval() <= 0 {
		return nil
	}

	trigger := make(chan os.Signal, 1)
	metrics.SetTriggerChannel(trigger)
	defer metrics.SetTriggerChannel(nil)

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Println("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
		case sig := <-trigger:
			logger.Printf("sweep triggered (%v)", sig)
		}

		if _, err := RunOnceWithDB(ctx, cfg, logger, db); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Printf("[ERROR] error running cycle: %v", err)
		}
	}
}

// updateFreeSpaceMetrics publishes free space for a swept root. A root removed
// because it ended up empty is measured through its parent.
func updateFreeSpaceMetrics(root string, logger *log.Logger) {
	usage, err := disk.GetUsage(root)
	if err != nil {
		if usage, err = disk.GetUsage(filepath.Dir(root)); err != nil {
			logger.Printf("failed to get disk usage for %s: %v", root, err)
			return
		}
	}
	metrics.SetRootFreeBytes(root, usage.FreeBytes)
}

// Describe renders a one-line summary for CLI output
func (s *Summary) Describe() string {
	return fmt.Sprintf("%d files deleted, %d directories removed, %d bytes freed, %d errors, %d skipped",
		s.FilesDeleted, s.DirsDeleted, s.BytesFreed, s.Errors, s.Skipped)
}

package sweep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"myutils/internal/fsops"
	"myutils/internal/limiter"
	"myutils/internal/metrics"
	"myutils/internal/safety"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrEmptySuffix = errors.New("suffix cannot be empty")

// Logger interface for structured logging in a sweep
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// sweepStdLogger wraps standard log.Logger to implement Logger interface
type sweepStdLogger struct {
	*log.Logger
}

func (l *sweepStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *sweepStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *sweepStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Recorder persists outcomes; *database.DeletionDB satisfies it
type Recorder interface {
	RecordOutcome(runID, root string, o Outcome) error
}

// Metrics interface for sweep metrics
type Metrics interface {
	FilesDeletedTotal() prometheus.Counter
	DirsDeletedTotal() prometheus.Counter
	BytesFreedTotal() prometheus.Counter
	ErrorsTotal() prometheus.Counter
	SkippedTotal() prometheus.Counter
}

// sweepMetrics wraps global metrics to implement Metrics interface
type sweepMetrics struct{}

func (sweepMetrics) FilesDeletedTotal() prometheus.Counter { return metrics.FilesDeletedTotal }
func (sweepMetrics) DirsDeletedTotal() prometheus.Counter  { return metrics.DirsDeletedTotal }
func (sweepMetrics) BytesFreedTotal() prometheus.Counter   { return metrics.BytesFreedTotal }
func (sweepMetrics) ErrorsTotal() prometheus.Counter       { return metrics.SweepErrorsTotal }
func (sweepMetrics) SkippedTotal() prometheus.Counter      { return metrics.SweepSkippedTotal }

// Options tune a Sweeper
type Options struct {
	DryRun         bool
	KeepRoot       bool
	ProtectedPaths []string
}

// Sweeper deletes suffix-matched files and the directories they leave empty
type Sweeper struct {
	logger   Logger
	metrics  Metrics
	deleter  fsops.Deleter
	recorder Recorder
	limiter  *limiter.CPULimiter
	opts     Options
	now      func() time.Time
}

// NewSweeper creates a Sweeper that deletes through the real filesystem.
// A nil logger writes trace lines to stdout.
func NewSweeper(logger *log.Logger, opts Options) *Sweeper {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	metrics.Init()
	return &Sweeper{
		logger:  &sweepStdLogger{Logger: logger},
		metrics: sweepMetrics{},
		deleter: fsops.OSDeleter{},
		opts:    opts,
		now:     time.Now,
	}
}

// SetDeleter replaces the filesystem backend
func (s *Sweeper) SetDeleter(d fsops.Deleter) {
	s.deleter = d
}

// SetRecorder enables deletion history; nil disables it
func (s *Sweeper) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetLimiter throttles the walk between directories
func (s *Sweeper) SetLimiter(l *limiter.CPULimiter) {
	s.limiter = l
}

// Clean sweeps root with a default Sweeper
func Clean(root, suffix string) (*Result, error) {
	return NewSweeper(nil, Options{}).Clean(context.Background(), root, suffix)
}

// Clean walks root depth-first. A regular file whose name ends with suffix is
// deleted; a directory is deleted once its children have been visited and
// nothing is left in it. The root is treated like any other directory unless
// KeepRoot is set.
//
// Failed deletions do not stop the walk: they are reported as ERROR outcomes
// in the returned Result. The error return is reserved for arguments the
// sweep refuses to start with and for context cancellation; in the latter
// case the partial Result is returned too.
func (s *Sweeper) Clean(ctx context.Context, root, suffix string) (*Result, error) {
	if suffix == "" {
		return nil, ErrEmptySuffix
	}

	guard, err := safety.NewGuard(root, s.opts.ProtectedPaths)
	if err != nil {
		return nil, fmt.Errorf("sweep root %s: %w", root, err)
	}

	// The root is the one path followed through a symlink; removing it would
	// only unlink it, so a symlinked root is always kept.
	linfo, err := os.Lstat(guard.Root)
	if err != nil {
		return nil, fmt.Errorf("sweep root: %w", err)
	}
	info := linfo
	if linfo.Mode()&fs.ModeSymlink != 0 {
		if info, err = os.Stat(guard.Root); err != nil {
			return nil, fmt.Errorf("sweep root: %w", err)
		}
	}

	w := &walk{
		Sweeper:  s,
		ctx:      ctx,
		guard:    guard,
		suffix:   suffix,
		keepRoot: s.opts.KeepRoot || linfo.Mode()&fs.ModeSymlink != 0,
		result: &Result{
			RunID:  uuid.NewString(),
			Root:   guard.Root,
			Suffix: suffix,
			DryRun: s.opts.DryRun,
		},
	}

	start := s.now()
	if s.opts.DryRun {
		s.logger.Info("[DRY RUN] Starting sweep", "run", w.result.RunID, "root", guard.Root, "suffix", suffix)
	} else {
		s.logger.Info("Starting sweep", "run", w.result.RunID, "root", guard.Root, "suffix", suffix)
	}

	w.visit(guard.Root, fs.FileInfoToDirEntry(info), true)
	w.result.Duration = s.now().Sub(start)

	r := w.result
	s.logger.Info("Sweep complete",
		"root", r.Root,
		"files_deleted", r.FilesDeleted,
		"dirs_deleted", r.DirsDeleted,
		"bytes_freed", r.BytesFreed,
		"errors", r.Errors,
		"skipped", r.Skipped,
	)

	if err := ctx.Err(); err != nil {
		return r, err
	}
	return r, nil
}

// walk carries the per-call state of one Clean
type walk struct {
	*Sweeper
	ctx      context.Context
	guard    *safety.Guard
	suffix   string
	keepRoot bool
	result   *Result
}

// visit returns true when path no longer exists (or would not, in a dry run)
func (w *walk) visit(path string, d fs.DirEntry, isRoot bool) bool {
	if w.ctx.Err() != nil {
		return false
	}

	switch {
	case d.Type().IsRegular():
		if !strings.HasSuffix(d.Name(), w.suffix) {
			return false
		}
		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		return w.remove(path, ObjectFile, size, ReasonSuffixMatch)

	case d.IsDir():
		w.limiter.Throttle()

		entries, err := w.deleter.ReadDir(path)
		if err != nil {
			w.record(Outcome{
				Path:       path,
				ObjectType: ObjectDir,
				Action:     ActionError,
				Reason:     ReasonUnreadable,
				Err:        err,
			})
			return false
		}

		remaining := len(entries)
		for _, entry := range entries {
			if w.visit(filepath.Join(path, entry.Name()), entry, false) {
				remaining--
			}
		}

		if remaining > 0 || w.ctx.Err() != nil {
			return false
		}
		if isRoot && w.keepRoot {
			return false
		}
		return w.remove(path, ObjectEmptyDir, 0, ReasonEmptyDir)

	default:
		// Symlinks, sockets and devices are never followed or removed
		return false
	}
}

func (w *walk) remove(path, objectType string, size int64, reason string) bool {
	if err := w.guard.Check(path); err != nil {
		w.record(Outcome{
			Path:       path,
			ObjectType: objectType,
			Action:     ActionSkip,
			Size:       size,
			Reason:     reason,
			Err:        err,
		})
		return false
	}

	if w.opts.DryRun {
		w.record(Outcome{Path: path, ObjectType: objectType, Action: ActionDryRun, Size: size, Reason: reason})
		return true
	}

	err := w.deleter.Remove(path)
	switch {
	case err == nil:
		w.record(Outcome{Path: path, ObjectType: objectType, Action: ActionDelete, Size: size, Reason: reason})
		return true

	case errors.Is(err, fs.ErrNotExist):
		// Removed by someone else between listing and delete
		w.logger.Info("Already deleted", "path", path)
		return true

	case objectType == ObjectEmptyDir && isNotEmpty(err):
		// Something was created in the directory during the sweep
		w.record(Outcome{Path: path, ObjectType: objectType, Action: ActionSkip, Reason: ReasonNotEmpty, Err: err})
		return false

	default:
		w.record(Outcome{Path: path, ObjectType: objectType, Action: ActionError, Size: size, Reason: reason, Err: err})
		return false
	}
}

func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

func (w *walk) record(o Outcome) {
	o.At = w.now()
	w.result.add(o)
	w.logStructured(o)

	if w.recorder != nil {
		if err := w.recorder.RecordOutcome(w.result.RunID, w.result.Root, o); err != nil {
			// History is best effort; the sweep itself continues
			w.logger.Error("Failed to record to database", "path", o.Path, "error", err)
		}
	}

	switch o.Action {
	case ActionDelete:
		if o.ObjectType == ObjectFile {
			w.metrics.FilesDeletedTotal().Inc()
			w.metrics.BytesFreedTotal().Add(float64(o.Size))
			metrics.RecordRootDeletion(w.result.Root)
		} else {
			w.metrics.DirsDeletedTotal().Inc()
		}
	case ActionSkip:
		w.metrics.SkippedTotal().Inc()
	case ActionError:
		w.metrics.ErrorsTotal().Inc()
	}
}

// logStructured writes the per-path trace line:
// [2024-01-02T15:04:05Z] DELETE path=/x/a.jar.lastUpdated object=file size=12 reason="suffix_match"
func (w *walk) logStructured(o Outcome) {
	entry := fmt.Sprintf("[%s] %s path=%s object=%s size=%d reason=%q",
		o.At.UTC().Format(time.RFC3339),
		o.Action,
		o.Path,
		o.ObjectType,
		o.Size,
		o.Reason,
	)
	if o.Err != nil {
		entry += fmt.Sprintf(" error=%q", o.Err.Error())
	}

	if o.Action == ActionError {
		w.logger.Error(entry)
		return
	}
	w.logger.Info(entry)
}

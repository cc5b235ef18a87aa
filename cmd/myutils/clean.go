package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"myutils/internal/config"
	"myutils/internal/database"
	"myutils/internal/exitcodes"
	"myutils/internal/logging"
	"myutils/internal/metrics"
	"myutils/internal/safety"
	"myutils/internal/scheduler"
	"myutils/internal/sweep"
)

type cleanFlags struct {
	configPath string
	dryRun     bool
	keepRoot   bool
	once       bool
	dbPath     string
}

func newCleanCmd() *cobra.Command {
	f := &cleanFlags{}
	c := &cobra.Command{
		Use:   "clean [root] [suffix]",
		Short: "Delete files ending in suffix and the directories left empty",
		Long: `Walk root depth-first, delete every regular file whose name ends with
suffix (default .lastUpdated), then remove each directory that is empty once
its children have been processed. The root itself goes too when it ends up
empty, unless --keep-root is given.

With --config, roots and suffix come from the YAML file and the sweep repeats
every interval_minutes until interrupted (use --once for a single pass).`,
		Example: `  myutils clean ~/.m2/repository
  myutils clean ~/.m2/repository .lastUpdated --dry-run
  myutils clean --config /etc/myutils/config.yaml --once`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, f, args)
		},
	}
	c.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	c.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "Report what would be deleted without deleting")
	c.Flags().BoolVar(&f.keepRoot, "keep-root", false, "Never remove the root directory itself")
	c.Flags().BoolVar(&f.once, "once", false, "Run a single sweep and exit (no loop)")
	c.Flags().StringVar(&f.dbPath, "db", "", "Record outcomes in this SQLite history database")
	return c
}

// loadCleanConfig builds the sweep config from --config and/or positional args.
// Positional root and suffix override the file.
func loadCleanConfig(f *cleanFlags, args []string) (*config.Config, error) {
	var cfg *config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else if len(args) == 0 {
		return nil, errors.New("root directory required (or --config)")
	} else {
		cfg = &config.Config{}
	}

	if err := applyOverrides(cfg, f, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides layers command-line arguments over cfg and revalidates it
func applyOverrides(cfg *config.Config, f *cleanFlags, args []string) error {
	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve root: %w", err)
		}
		cfg.Clean.Roots = []string{abs}
	}
	if len(args) > 1 {
		if args[1] == "" {
			return config.ErrEmptySuffix
		}
		cfg.Clean.Suffix = args[1]
	}

	if f.dryRun {
		cfg.Clean.DryRun = true
	}
	if f.keepRoot {
		cfg.Clean.KeepRoot = true
	}
	if f.once {
		cfg.IntervalMinutes = 0
	}
	if f.dbPath != "" {
		cfg.DatabasePath = f.dbPath
	}

	return cfg.Validate()
}

func runClean(cmd *cobra.Command, f *cleanFlags, args []string) error {
	cfg, err := loadCleanConfig(f, args)
	if err != nil {
		return withCode(exitcodes.InvalidConfig, err)
	}

	logger := logging.NewWithWriter(cmd.OutOrStdout(), cfg)
	if cfg.Clean.DryRun {
		logger.Println("DRY RUN MODE: No files will be deleted")
	}

	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		logger.Printf("Starting Prometheus metrics on %s", cfg.PrometheusAddress())
		metrics.StartServer(cfg.PrometheusAddress(), logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, logger)
		}()
	}

	var db *database.DeletionDB
	if cfg.DatabasePath != "" {
		logger.Printf("Opening deletion database: %s", cfg.DatabasePath)
		db, err = database.NewDeletionDB(cfg.DatabasePath)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to open database: %w", err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Printf("Received signal %v, shutting down gracefully...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Interval() > 0 {
		logger.Printf("Starting sweep scheduler (every %s)...", cfg.Interval())
		if err := runDaemon(ctx, cfg, f, args, logger, db); err != nil && !errors.Is(err, context.Canceled) {
			return withCode(errorCode(err), err)
		}
		return nil
	}

	summary, err := scheduler.RunOnceWithDB(ctx, cfg, logger, db)
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), summary.Describe())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return withCode(errorCode(err), err)
	}
	if summary != nil && summary.Errors > 0 {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("%d paths could not be deleted", summary.Errors))
	}
	return nil
}

// runDaemon runs the scheduler until ctx is cancelled. With --config, an edit
// to the file restarts the scheduler on the new configuration; the history
// database and metrics server stay as they were opened.
func runDaemon(ctx context.Context, cfg *config.Config, f *cleanFlags, args []string, logger *log.Logger, db *database.DeletionDB) error {
	var updates <-chan *config.Config
	if f.configPath != "" {
		var err error
		updates, err = config.Watch(ctx, f.configPath, func(err error) {
			logger.Printf("ERROR: Ignoring config change: %v", err)
		})
		if err != nil {
			logger.Printf("ERROR: Config reload disabled: %v", err)
		}
	}

	for {
		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(cfg *config.Config) {
			done <- scheduler.RunWithDB(runCtx, cfg, logger, db)
		}(cfg)

		next, err := waitForReload(done, updates, f, args, logger)
		stop()
		if next == nil {
			return err
		}
		<-done

		logger.Printf("Config reloaded: roots=%v suffix=%s interval=%s", next.Clean.Roots, next.Clean.Suffix, next.Interval())
		cfg = next
	}
}

// waitForReload blocks until the scheduler exits (nil config, its error) or a
// valid config change arrives
func waitForReload(done <-chan error, updates <-chan *config.Config, f *cleanFlags, args []string, logger *log.Logger) (*config.Config, error) {
	for {
		select {
		case err := <-done:
			return nil, err
		case next, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := applyOverrides(next, f, args); err != nil {
				logger.Printf("ERROR: Ignoring config change: %v", err)
				continue
			}
			return next, nil
		}
	}
}

// errorCode maps a sweep start-up failure to an exit code
func errorCode(err error) int {
	switch {
	case errors.Is(err, safety.ErrProtectedPath),
		errors.Is(err, safety.ErrTraversal),
		errors.Is(err, safety.ErrOutsideRoot),
		errors.Is(err, safety.ErrSymlinkEscape):
		return exitcodes.SafetyViolation
	case errors.Is(err, sweep.ErrEmptySuffix):
		return exitcodes.InvalidConfig
	default:
		return exitcodes.RuntimeError
	}
}

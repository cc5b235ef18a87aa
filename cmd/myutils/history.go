package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"myutils/internal/database"
	"myutils/internal/exitcodes"
)

const defaultDBPath = "/var/lib/myutils/history.db"

type historyFlags struct {
	dbPath  string
	recent  int
	stats   bool
	days    int
	action  string
	path    string
	root    string
	run     string
	prune   int
	jsonOut bool
}

func newHistoryCmd() *cobra.Command {
	f := &historyFlags{}
	c := &cobra.Command{
		Use:   "history",
		Short: "Query the sweep history database",
		Example: `  myutils history --recent 10           # 10 most recent outcomes
  myutils history --stats --days 7       # totals for the last week
  myutils history --action ERROR         # failed deletions
  myutils history --path '%/junit/%'     # outcomes under a path (SQL LIKE)
  myutils history --run <run-id>         # every outcome of one sweep, in order
  myutils history --prune 90             # drop records older than 90 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, f)
		},
	}
	c.Flags().StringVar(&f.dbPath, "db", defaultDBPath, "Path to history database")
	c.Flags().IntVar(&f.recent, "recent", 0, "Show N most recent outcomes")
	c.Flags().BoolVar(&f.stats, "stats", false, "Show totals")
	c.Flags().IntVar(&f.days, "days", 30, "Number of days for --stats")
	c.Flags().StringVar(&f.action, "action", "", "Filter by action (DELETE, DRY_RUN, SKIP, ERROR)")
	c.Flags().StringVar(&f.path, "path", "", "Filter by path pattern (SQL LIKE syntax)")
	c.Flags().StringVar(&f.root, "root", "", "Filter by sweep root")
	c.Flags().StringVar(&f.run, "run", "", "Show one sweep by run ID")
	c.Flags().IntVar(&f.prune, "prune", 0, "Delete records older than N days, then vacuum")
	c.Flags().BoolVar(&f.jsonOut, "json", false, "Output in JSON format")
	c.MarkFlagsMutuallyExclusive("recent", "stats", "action", "path", "root", "run", "prune")
	return c
}

func runHistory(cmd *cobra.Command, f *historyFlags) error {
	if f.recent < 0 || f.days < 0 || f.prune < 0 {
		return withCode(exitcodes.InvalidConfig, errors.New("--recent, --days and --prune must not be negative"))
	}

	db, err := database.NewDeletionDB(f.dbPath)
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to open database %s: %w", f.dbPath, err))
	}
	defer db.Close()

	w := cmd.OutOrStdout()

	var records []database.DeletionRecord
	switch {
	case f.stats:
		stats, err := db.GetDeletionStats(f.days)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to get statistics: %w", err))
		}
		if f.jsonOut {
			return printJSON(w, stats)
		}
		printStats(w, stats, f.days)
		return nil

	case f.prune > 0:
		n, err := db.DeleteOldRecords(f.prune)
		if err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to prune: %w", err))
		}
		if err := db.Vacuum(); err != nil {
			return withCode(exitcodes.RuntimeError, fmt.Errorf("failed to vacuum: %w", err))
		}
		fmt.Fprintf(w, "Pruned %d records older than %d days\n", n, f.prune)
		return nil

	case f.recent > 0:
		records, err = db.GetRecentDeletions(f.recent)
	case f.action != "":
		records, err = db.GetDeletionsByAction(f.action)
	case f.path != "":
		records, err = db.GetDeletionsByPath(f.path)
	case f.root != "":
		records, err = db.GetDeletionsByRoot(f.root)
	case f.run != "":
		records, err = db.GetDeletionsByRun(f.run)
	default:
		_ = cmd.Usage()
		return withCode(exitcodes.InvalidConfig, nil)
	}
	if err != nil {
		return withCode(exitcodes.RuntimeError, fmt.Errorf("query failed: %w", err))
	}

	if f.jsonOut {
		if records == nil {
			records = []database.DeletionRecord{}
		}
		return printJSON(w, records)
	}
	printRecords(w, records)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return withCode(exitcodes.RuntimeError, err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printStats(w io.Writer, stats *database.DeletionStats, days int) {
	fmt.Fprintf(w, "Sweep Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Total Deletions:  %d\n", stats.TotalDeletions)
	fmt.Fprintf(w, "Total Dry Run:    %d\n", stats.TotalDryRun)
	fmt.Fprintf(w, "Total Skipped:    %d\n", stats.TotalSkipped)
	fmt.Fprintf(w, "Total Errors:     %d\n", stats.TotalErrors)
	fmt.Fprintf(w, "Space Freed:      %s\n", formatBytes(stats.TotalSpaceFreed))

	printCounts(w, "By Object Type:", stats.ByObjectType)
	printCounts(w, "By Root:", stats.ByRoot)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-30s %d\n", k, counts[k])
	}
}

func printRecords(out io.Writer, records []database.DeletionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tObject\tReason\tSize\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t------\t----\t----")

	for _, r := range records {
		reason := r.Reason
		if r.ErrorMessage != "" {
			reason = r.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Action, r.ObjectType,
			reason, formatBytes(r.Size), r.Path)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

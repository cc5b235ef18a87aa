package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"myutils/internal/config"
	"myutils/internal/database"
	"myutils/internal/metrics"
)

func durationSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.SweepDuration.Write(&m); err != nil {
		t.Fatalf("Failed to read duration histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func testConfig(t *testing.T, roots ...string) *config.Config {
	t.Helper()
	cfg, err := config.New(roots, "")
	if err != nil {
		t.Fatalf("config.New failed: %v", err)
	}
	cfg.Clean.KeepRoot = true
	return cfg
}

func TestRunOnceSweepsEveryRoot(t *testing.T) {
	m2 := t.TempDir()
	gradle := t.TempDir()
	writeFile(t, filepath.Join(m2, "junit/junit/4.12/junit-4.12.jar.lastUpdated"))
	writeFile(t, filepath.Join(gradle, "caches/x.lastUpdated"))
	writeFile(t, filepath.Join(gradle, "caches/keep.jar"))

	metrics.Init()
	before := durationSamples(t)

	var buf bytes.Buffer
	summary, err := RunOnce(context.Background(), testConfig(t, m2, gradle), log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	// One duration sample per root, not per cycle
	if got := durationSamples(t); got != before+2 {
		t.Errorf("duration samples = %d, expected %d", got, before+2)
	}

	if len(summary.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(summary.Results))
	}
	if summary.FilesDeleted != 2 {
		t.Errorf("FilesDeleted = %d, expected 2", summary.FilesDeleted)
	}
	// junit/junit/4.12, junit/junit, junit
	if summary.DirsDeleted != 3 {
		t.Errorf("DirsDeleted = %d, expected 3", summary.DirsDeleted)
	}
	if _, err := os.Stat(filepath.Join(gradle, "caches/keep.jar")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("cycle complete")) {
		t.Errorf("missing cycle summary in log:\n%s", buf.String())
	}
}

func TestRunOnceContinuesPastBadRoot(t *testing.T) {
	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing")
	writeFile(t, filepath.Join(good, "a.lastUpdated"))

	var buf bytes.Buffer
	summary, err := RunOnce(context.Background(), testConfig(t, missing, good), log.New(&buf, "", 0))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, expected ErrNotExist", err)
	}
	if summary.FilesDeleted != 1 {
		t.Errorf("good root not swept: FilesDeleted = %d", summary.FilesDeleted)
	}
}

func TestRunOnceRecordsHistory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.lastUpdated"))

	db, err := database.NewDeletionDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := RunOnceWithDB(context.Background(), testConfig(t, root), log.New(&bytes.Buffer{}, "", 0), db); err != nil {
		t.Fatalf("RunOnceWithDB failed: %v", err)
	}

	records, err := db.GetDeletionsByRoot(root)
	if err != nil {
		t.Fatalf("GetDeletionsByRoot failed: %v", err)
	}
	if len(records) != 1 || records[0].FileName != "a.lastUpdated" {
		t.Errorf("unexpected history: %+v", records)
	}
}

func TestRunOnceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunOnce(ctx, testConfig(t, t.TempDir()), log.New(&bytes.Buffer{}, "", 0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, expected context.Canceled", err)
	}
}

func TestRunWithoutIntervalRunsOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.lastUpdated"))

	if err := Run(context.Background(), testConfig(t, root), log.New(&bytes.Buffer{}, "", 0)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.lastUpdated")); !os.IsNotExist(err) {
		t.Error("file not swept")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.lastUpdated"))

	cfg := testConfig(t, root)
	cfg.IntervalMinutes = 60

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, log.New(&bytes.Buffer{}, "", 0))
	}()

	// The first cycle runs immediately
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(root, "a.lastUpdated")); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first cycle did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, expected context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

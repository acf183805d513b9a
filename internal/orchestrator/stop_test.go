package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchStopFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals", "stop")

	ctx, stop, err := WatchStopFile(context.Background(), path)
	if err != nil {
		t.Fatalf("WatchStopFile failed: %v", err)
	}
	defer stop()

	if ctx.Err() != nil {
		t.Fatal("context canceled before the stop file exists")
	}

	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled after the stop file appeared")
	}
}

func TestWatchStopFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, stop, err := WatchStopFile(context.Background(), filepath.Join(dir, "stop"))
	if err != nil {
		t.Fatalf("WatchStopFile failed: %v", err)
	}
	defer stop()

	if err := os.WriteFile(filepath.Join(dir, "other"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
		t.Fatal("context canceled by an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchStopFile_AlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	ctx, stop, err := WatchStopFile(context.Background(), path)
	if err != nil {
		t.Fatalf("WatchStopFile failed: %v", err)
	}
	defer stop()

	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("ctx.Err() = %v, want canceled", ctx.Err())
	}
}

func TestWatchStopFile_CancelsPendingTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	ctx, stop, err := WatchStopFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	e := NewExecutor()
	e.AddTask(valueTask("a", 1))
	if err := e.SetupClient(ModeLocal, BackendOptions{Workers: 1}); err != nil {
		t.Fatal(err)
	}
	results := e.Run(ctx)
	if results[0].OK() {
		t.Error("task ran after the stop file was present")
	}
}

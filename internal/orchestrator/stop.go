package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchStopFile returns a context that is canceled once a file appears at
// path, letting another shell stop a running batch with touch. Jobs that
// have not started yet then fail as canceled. A file already present when
// the watch starts cancels immediately. The returned stop function releases
// the watcher and must be called.
func WatchStopFile(ctx context.Context, path string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create stop file directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		cancel()
		return nil, nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	if _, err := os.Stat(path); err == nil {
		log.Printf("[executor] stop file %s present, canceling", path)
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					log.Printf("[executor] stop file %s created, canceling", path)
					cancel()
					return
				}
			case _, ok := <-watcher.Errors:
				// Ignore errors, keep watching
				if !ok {
					return
				}
			}
		}
	}()

	stop := func() {
		cancel()
		<-done
		watcher.Close()
	}
	return ctx, stop, nil
}

package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garagon/sifter/internal/watch"
)

func startWatcher(t *testing.T, cfg watch.Config) <-chan []string {
	t.Helper()
	w, err := watch.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, changed []string) {
			batches <- changed
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestWatcherDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))

	batches := startWatcher(t, watch.Config{
		Root:       root,
		Dirs:       []string{"src"},
		Debounce:   100 * time.Millisecond,
		Extensions: []string{"php"},
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "b.php"), []byte("<?php"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.PHP"), []byte("<?php"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", ".hidden.php"), []byte("x"), 0644))

	require.Equal(t, []string{"src/a.PHP", "src/b.php"}, waitBatch(t, batches))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, watch.Config{Root: root, Debounce: 100 * time.Millisecond})

	sub := filepath.Join(root, "modules", "file_test")
	require.NoError(t, os.Mkdir(filepath.Join(root, "modules"), 0755))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "file_test.module"), []byte("<?php"), 0644))

	var seen []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-batches:
			seen = append(seen, b...)
		case <-deadline:
			t.Fatalf("new directory not watched; saw %v", seen)
		}
		for _, p := range seen {
			if p == "modules/file_test/file_test.module" {
				return
			}
		}
	}
}

func TestWatcherSkipsVCSDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))

	w, err := watch.New(watch.Config{Root: root})
	require.NoError(t, err)
	require.Equal(t, 2, w.DirsWatched())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx, func(context.Context, []string) {}))
}

func TestWatcherMissingDir(t *testing.T) {
	_, err := watch.New(watch.Config{Root: t.TempDir(), Dirs: []string{"gone"}})
	require.Error(t, err)
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/store"
)

func TestWatcher_ReportsChangedSessions(t *testing.T) {
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir, store.FormatJSON)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	w := &Watcher{Dir: dir, Debounce: 300 * time.Millisecond, Logger: zaptest.NewLogger(t).Sugar()}
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, sessions []string) error {
			changes <- sessions
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, fs.SaveVotes(sessionVotes("2023-2024", true)))
	require.NoError(t, fs.SaveVotes(sessionVotes("2022-2023", true)))

	select {
	case got := <-changes:
		assert.Equal(t, []string{"2022-2023", "2023-2024"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_RequiresDir(t *testing.T) {
	w := &Watcher{}
	err := w.Run(context.Background(), func(context.Context, []string) error { return nil })
	assert.Error(t, err)
}

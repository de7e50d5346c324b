package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/store"
)

// DefaultDebounce is how long a Watcher waits for further changes before
// calling its handler.
const DefaultDebounce = 2 * time.Second

// Watcher reports sessions whose vote files change in a data directory.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Logger   *zap.SugaredLogger
}

// Run watches the directory until ctx is done. Changes arriving within the
// debounce interval are coalesced into one call of onChange with the
// affected sessions, sorted. Handler errors are logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, sessions []string) error) error {
	if w.Dir == "" {
		return errors.New("no directory configured for watching")
	}
	log := logger.OrDefault(w.Logger, "watch")

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return errors.Wrapf(err, "watch directory %s", w.Dir)
	}
	log.Infow("Watching for new votes", logger.FieldPath, w.Dir)

	pending := make(map[string]bool)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			id, ok := store.VotesSessionID(filepath.Base(event.Name))
			if !ok {
				continue
			}
			pending[id] = true
			fire = time.After(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("Watcher error", logger.FieldError, err.Error())

		case <-fire:
			fire = nil
			sessions := make([]string, 0, len(pending))
			for id := range pending {
				sessions = append(sessions, id)
			}
			sort.Strings(sessions)
			pending = make(map[string]bool)

			log.Infow("Vote files changed", "sessions", sessions)
			if err := onChange(ctx, sessions); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Errorw("Change handler failed", logger.FieldError, err.Error())
			}
		}
	}
}

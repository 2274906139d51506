package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/tessera/pkg/formats"
)

// DefaultDebounce groups the burst of events an editor emits for one save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher rebuilds source meshes in a directory when they change.
type Watcher struct {
	b        *Builder
	dir      string
	watcher  *fsnotify.Watcher
	Debounce time.Duration
}

// NewWatcher starts watching dir. Events are not processed until Run.
func (b *Builder) NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{b: b, dir: dir, watcher: fw, Debounce: DefaultDebounce}, nil
}

// Run processes events until ctx is done, calling fn after each rebuild
// with the report or the build error. Run closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, fn func(*Report, error)) error {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.Debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !formats.IsSourceMesh(event.Name) {
				continue
			}
			// Rename reports the old name; the new name arrives as Create.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.b.log.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))

		case <-timer.C:
			srcs := make([]string, 0, len(pending))
			for src := range pending {
				srcs = append(srcs, src)
			}
			clear(pending)
			sort.Strings(srcs)
			for _, src := range srcs {
				if _, err := os.Stat(src); err != nil {
					w.b.log.Debug("source gone before rebuild", zap.String("source", filepath.Base(src)))
					continue
				}
				rep, err := w.b.BuildFile(ctx, src)
				if err != nil {
					w.b.log.Error("rebuild failed", zap.String("source", filepath.Base(src)), zap.Error(err))
				}
				if fn != nil {
					fn(rep, err)
				}
			}
		}
	}
}

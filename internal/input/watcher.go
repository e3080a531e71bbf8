package input

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchBuffer = 64

// Watcher reports documents that land in a directory. A file is reported
// once no create or write event has touched it for the quiet period, so a
// copy in progress is not picked up half written.
type Watcher struct {
	dir     string
	pattern string
	quiet   time.Duration
	fsw     *fsnotify.Watcher
	logger  *zap.Logger

	pending map[string]time.Time
	out     chan string
}

func NewWatcher(dir, pattern string, quiet time.Duration, logger *zap.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if quiet <= 0 {
		quiet = 500 * time.Millisecond
	}
	return &Watcher{
		dir:     dir,
		pattern: pattern,
		quiet:   quiet,
		fsw:     fsw,
		logger:  logger,
		pending: make(map[string]time.Time),
		out:     make(chan string, watchBuffer),
	}, nil
}

// Documents delivers settled document paths. It is closed when Run returns.
func (w *Watcher) Documents() <-chan string {
	return w.out
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)
	defer w.fsw.Close()

	ticker := time.NewTicker(w.quiet / 2)
	defer ticker.Stop()

	w.logger.Info("Watching for documents", zap.String("dir", w.dir), zap.String("pattern", w.pattern))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !Matches(w.dir, w.pattern, ev.Name) {
				continue
			}
			w.pending[ev.Name] = time.Now()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", zap.Error(err))

		case now := <-ticker.C:
			if err := w.flush(ctx, now); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) flush(ctx context.Context, now time.Time) error {
	for path, last := range w.pending {
		if now.Sub(last) < w.quiet {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		select {
		case w.out <- path:
			w.logger.Debug("Document settled", zap.String("path", path))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

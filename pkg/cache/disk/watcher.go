package disk

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
)

// Watcher observes the cache root and reports external removal of committed
// entries, so the in-memory fast-path index can drop paths that no longer
// exist on disk (e.g. the host OS reclaiming cache space).
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	onRemove func(path string)
	done     chan struct{}
}

// Watch starts watching the store's root directory. onRemove is invoked
// with the final path of every entry removed by an external actor. The
// callback runs on the watcher goroutine and must not block.
func Watch(s *Store, onRemove func(path string)) (*Watcher, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(s.root); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		root:     s.root,
		onRemove: onRemove,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Temp file churn under .partial is not an eviction.
			if strings.Contains(ev.Name, string(filepath.Separator)+tmpDirName+string(filepath.Separator)) {
				continue
			}
			logger.Debug("cache entry removed externally", logger.KeyPath, ev.Name)
			w.onRemove(ev.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("cache watcher error", logger.KeyError, err.Error())
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

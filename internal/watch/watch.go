// Package watch spawns a filesystem watcher over a Maildir tree and emits
// a debounced signal on directory writes, mirroring the original's
// notify::watcher(tx, Duration::from_secs(10)) behavior (spec §4.5 step 5).
package watch

import (
	"fmt"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/mdsync/mdsync/internal/errkind"
)

const debounceWindow = 10 * time.Second

// Watcher observes a directory tree recursively and calls onChange
// (debounced) whenever a directory is written to, or onError for watcher
// failures.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// Start begins watching root and every subdirectory beneath it. onChange
// fires at most once per debounce window no matter how many directory
// writes occur inside it. onError is called for non-fatal watcher errors;
// the watcher keeps running afterward.
func Start(root string, onChange func(), onError func(error)) (*Watcher, error) {
	return start(root, debounceWindow, onChange, onError)
}

// start is Start with an injectable debounce window, so tests don't have
// to wait out the real 10s production window.
func start(root string, window time.Duration, onChange func(), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errkind.Wrap(errkind.Maildir, fmt.Errorf("create watcher: %w", err))
	}

	dirs, err := subdirs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return nil, errkind.Wrap(errkind.Maildir, fmt.Errorf("watch %s: %w", d, err))
		}
	}

	debounced := debounce.New(window)

	go func() {
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// Every watched path is a directory (subdirs only adds
				// directories to fsw), so any Write/Create event here
				// happened inside one — fsnotify reports the changed
				// child's path in event.Name, never the directory's own,
				// so re-checking event.Name against isDir would always
				// be false and the signal would never fire.
				debounced(onChange)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

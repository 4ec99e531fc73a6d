// Package fswatch notifies callers when anything under a directory tree
// changes. Notifications carry no payload: receivers are expected to
// resynchronize the whole tree.
package fswatch

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/san/pkg/errors"
)

// fs is used for walking the watched tree. It will be overridden by
// afero.NewMemMapFs() in the tests.
var fs = afero.NewOsFs()

// Options configures a Subscription.
type Options struct {
	// Latency is the window in which bursts of events are coalesced into a
	// single signal. Zero disables the window, but signals are still
	// combined while the receiver is busy.
	Latency time.Duration

	// PollInterval is how often Poll rescans the tree.
	PollInterval time.Duration

	Clock clockwork.Clock
	Log   log.FieldLogger
}

func (opts Options) withDefaults() Options {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = log.StandardLogger()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return opts
}

// Subscription delivers change signals for a directory tree.
type Subscription struct {
	// C receives a value whenever the tree changes. It has a capacity of
	// one, so signals sent while the receiver is busy are combined. C is
	// never closed.
	C <-chan struct{}

	stop      chan struct{}
	closeOnce sync.Once
	closer    func() error
}

// Close stops delivering signals and releases the underlying watches.
func (s *Subscription) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}

// Watch subscribes to changes under `root` using the kernel's file
// notification mechanism. fsnotify doesn't watch directories recursively, so
// every subdirectory is added individually, including ones created after
// the subscription starts.
func Watch(root string, opts Options) (*Subscription, error) {
	opts = opts.withDefaults()

	dirs, err := getDirsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				opts.Log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", dir))
		}
	}

	stop := make(chan struct{})
	raw := make(chan struct{})
	go forwardEvents(watcher, raw, stop, opts.Log)

	return &Subscription{
		C:      combineUpdates(raw, stop, opts.Latency, opts.Clock),
		stop:   stop,
		closer: watcher.Close,
	}, nil
}

// forwardEvents translates fsnotify events into content-free signals,
// watching new directories as they're created.
func forwardEvents(watcher *fsnotify.Watcher, raw chan<- struct{},
	stop <-chan struct{}, logger log.FieldLogger) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				addNewDirs(watcher, event.Name, logger)
			}

			select {
			case raw <- struct{}{}:
			case <-stop:
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("File watcher error")
		}
	}
}

func addNewDirs(watcher *fsnotify.Watcher, path string, logger log.FieldLogger) {
	fi, err := fs.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}

	dirs, err := getDirsToWatch(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to list new directory")
		return
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.WithError(err).WithField("path", dir).Warn("Failed to watch new directory")
		}
	}
}

// combineUpdates coalesces the signals on `updates`. The first signal opens
// a window of length `latency`; every signal received until it closes is
// folded into one, which is then offered to the returned channel without
// blocking.
func combineUpdates(updates <-chan struct{}, stop <-chan struct{},
	latency time.Duration, clock clockwork.Clock) chan struct{} {

	combined := make(chan struct{}, 1)
	notify := func() {
		select {
		case combined <- struct{}{}:
		default:
		}
	}

	go func() {
		for {
			select {
			case <-stop:
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
			}

			if latency > 0 && !waitOut(updates, stop, latency, clock) {
				notify()
				return
			}
			notify()
		}
	}()
	return combined
}

// waitOut swallows signals until `latency` has passed. It returns false if
// `updates` was closed or the subscription stopped.
func waitOut(updates <-chan struct{}, stop <-chan struct{},
	latency time.Duration, clock clockwork.Clock) bool {

	timer := clock.NewTimer(latency)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return false
		case _, ok := <-updates:
			if !ok {
				return false
			}
		case <-timer.Chan():
			return true
		}
	}
}

// getDirsToWatch returns `root` and all directories beneath it.
func getDirsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}
	if !fi.IsDir() {
		return nil, errors.NotADirectory{Path: root}
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			// The path may have been removed since the walk started.
			if os.IsNotExist(err) {
				return nil
			}
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// IsResourceLimit returns whether `err` was caused by running out of file
// handles or inotify watches. Callers can fall back to Poll in that case.
func IsResourceLimit(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENOSPC) {
		return true
	}

	msg := errors.RootCause(err).Error()
	return strings.Contains(msg, "too many open files") ||
		strings.Contains(msg, "no space left on device")
}

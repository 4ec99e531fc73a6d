package fswatch

import (
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/san/pkg/errors"
)

type fileState struct {
	size    int64
	mode    os.FileMode
	modTime time.Time
}

type snapshot map[string]fileState

func (snap snapshot) equal(other snapshot) bool {
	if len(snap) != len(other) {
		return false
	}
	for path, state := range snap {
		otherState, ok := other[path]
		if !ok || otherState.size != state.size || otherState.mode != state.mode ||
			!otherState.modTime.Equal(state.modTime) {
			return false
		}
	}
	return true
}

// Poll subscribes to changes under `root` by rescanning the tree every
// PollInterval and comparing file sizes, modes and modification times. It's
// slower than Watch, but works regardless of how many files are in the tree.
func Poll(root string, opts Options) (*Subscription, error) {
	opts = opts.withDefaults()

	prev, err := takeSnapshot(root)
	if err != nil {
		return nil, errors.WithContext(err, "scan")
	}

	stop := make(chan struct{})
	raw := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-opts.Clock.After(opts.PollInterval):
			}

			next, err := takeSnapshot(root)
			if err != nil {
				opts.Log.WithError(err).WithField("path", root).Warn("Failed to scan for changes")
				continue
			}

			if next.equal(prev) {
				continue
			}
			prev = next

			select {
			case raw <- struct{}{}:
			case <-stop:
				return
			}
		}
	}()

	return &Subscription{
		C:    combineUpdates(raw, stop, 0, opts.Clock),
		stop: stop,
	}, nil
}

func takeSnapshot(root string) (snapshot, error) {
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

	snap := snapshot{}
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			// Files can disappear between listing a directory and statting
			// them. The next scan will pick up whatever happened.
			return nil
		}
		snap[path] = fileState{
			size:    fi.Size(),
			mode:    fi.Mode(),
			modTime: fi.ModTime(),
		}
		return nil
	})
	return snap, err
}

// Package engine keeps a local directory and a remote location in step by
// repeatedly pulling from the remote, and pushing back to it whenever the
// local tree changes.
package engine

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/san/pkg/errors"
	"github.com/sidkik/san/pkg/transfer"
)

// fs is used to validate the local directory. It will be overridden by
// afero.NewMemMapFs() in the tests.
var fs = afero.NewOsFs()

const (
	// DefaultInterval is how long the engine idles between cycles.
	DefaultInterval = time.Second

	// DefaultDebounce is how long each cycle waits for a local change after
	// pulling.
	DefaultDebounce = time.Second
)

// Stats counts the transfers made by an Engine.
type Stats struct {
	Pulls    int
	Pushes   int
	Failures int
}

// Engine alternates between idling and reconciling. Each reconciliation
// pulls the remote into the local directory, and then pushes the local
// directory to the remote if a change signal arrives within the debounce
// window.
type Engine struct {
	local   string
	remote  string
	invoker transfer.Invoker
	changes <-chan struct{}

	clock    clockwork.Clock
	log      log.FieldLogger
	interval time.Duration
	debounce time.Duration

	statsLock sync.Mutex
	stats     Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the idle and debounce timers.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger sets the logger. Every entry carries the local and remote
// paths.
func WithLogger(logger log.FieldLogger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

// WithInterval sets the idle time between cycles.
func WithInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithDebounce sets the maximum time each cycle waits for a change signal.
func WithDebounce(debounce time.Duration) Option {
	return func(e *Engine) {
		if debounce > 0 {
			e.debounce = debounce
		}
	}
}

// New creates an engine that syncs `local` with `remote`. `changes` should
// receive a value whenever the local tree changes. `local` must be a
// readable directory, otherwise New fails before any transfer is made.
func New(local, remote string, invoker transfer.Invoker, changes <-chan struct{},
	opts ...Option) (*Engine, error) {

	if err := checkLocalDir(local); err != nil {
		return nil, err
	}

	e := &Engine{
		local:    local,
		remote:   remote,
		invoker:  invoker,
		changes:  changes,
		clock:    clockwork.NewRealClock(),
		log:      log.StandardLogger(),
		interval: DefaultInterval,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithFields(log.Fields{
		"local":  local,
		"remote": remote,
	})
	return e, nil
}

func checkLocalDir(path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "stat local directory")
	}

	if !info.IsDir() {
		return errors.NotADirectory{Path: path}
	}

	f, err := fs.Open(path)
	if err != nil {
		return errors.WithContext(err, "open local directory")
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return errors.WithContext(err, "read local directory")
	}
	return nil
}

// Run syncs until the context is cancelled. The first pull happens
// immediately. Transfer failures are logged and retried on the next cycle,
// so Run only returns the context's error.
func (e *Engine) Run(ctx context.Context) error {
	e.log.WithFields(log.Fields{
		"interval": e.interval,
		"debounce": e.debounce,
	}).Info("Starting sync")

	for {
		e.pull(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		changed, err := e.waitForChange(ctx)
		if err != nil {
			return err
		}

		if changed {
			e.push(ctx)
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if err := e.sleep(ctx, e.interval); err != nil {
			return err
		}
	}
}

// Stats returns the transfers made so far.
func (e *Engine) Stats() Stats {
	e.statsLock.Lock()
	defer e.statsLock.Unlock()
	return e.stats
}

func (e *Engine) pull(ctx context.Context) {
	e.log.Debug("Pulling")
	res := e.invoker.Transfer(ctx, e.remote, e.local)
	e.record(res, func(stats *Stats) { stats.Pulls++ })
	if !res.OK() && ctx.Err() == nil {
		e.log.WithField("reason", res.Reason).Warn("Pull failed. Will retry next cycle")
	}
}

func (e *Engine) push(ctx context.Context) {
	e.log.Info("Local change detected. Pushing")
	res := e.invoker.Transfer(ctx, e.local, e.remote)
	e.record(res, func(stats *Stats) { stats.Pushes++ })
	if !res.OK() && ctx.Err() == nil {
		e.log.WithField("reason", res.Reason).Warn("Push failed. Will retry after the next change")
	}
}

func (e *Engine) record(res transfer.Result, count func(*Stats)) {
	e.statsLock.Lock()
	defer e.statsLock.Unlock()
	count(&e.stats)
	if !res.OK() {
		e.stats.Failures++
	}
}

// waitForChange waits up to the debounce window for a change signal. Any
// other signals already queued are consumed as well, so that a burst of
// changes results in a single push.
func (e *Engine) waitForChange(ctx context.Context) (bool, error) {
	timer := e.clock.NewTimer(e.debounce)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.Chan():
		return false, nil
	case _, ok := <-e.changes:
		if !ok {
			e.log.Warn("Change notifications stopped. Local changes will no longer be pushed")
			e.changes = nil
			return false, nil
		}
	}

	for {
		select {
		case _, ok := <-e.changes:
			if !ok {
				e.changes = nil
				return true, nil
			}
		default:
			return true, nil
		}
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := e.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

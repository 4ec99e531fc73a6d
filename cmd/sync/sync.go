package sync

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/pkg/config"
	"github.com/sidkik/san/pkg/engine"
	"github.com/sidkik/san/pkg/errors"
	"github.com/sidkik/san/pkg/fswatch"
	"github.com/sidkik/san/pkg/transfer"
)

// Mocked for unit testing.
var (
	openStore     = util.OpenStore
	homedirExpand = homedir.Expand
	checkTool     = transfer.CheckTool
	watch         = fswatch.Watch
	poll          = fswatch.Poll
	newEngine     = engine.New
	runEngine     = func(ctx context.Context, e *engine.Engine) error { return e.Run(ctx) }
)

// New creates a new `sync` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "sync (<name> | <local> <remote>)",
		Short: "Keep a local directory and a remote in sync until interrupted",
		Long: "Sync pulls from the remote into the local directory every cycle, and\n" +
			"pushes the local directory to the remote whenever it changes.\n" +
			"Files are never deleted on either side.\n\n" +
			"The endpoints are either looked up from a preset registered with\n" +
			"`san add`, or given directly as a local path and a remote.",
		Example: "  san sync Docs\n" +
			"  san sync ~/docs gdrive:/docs",
		Args: util.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := runSync(ctx, store, args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func runSync(ctx context.Context, store *config.Store, args []string) error {
	preset, err := getPreset(store, args)
	if err != nil {
		return err
	}

	local, err := homedirExpand(preset.Source)
	if err != nil {
		return errors.WithContext(err, "expand local path")
	}

	remote, err := expandRemote(preset.Dest)
	if err != nil {
		return errors.WithContext(err, "expand remote path")
	}

	settings, err := store.Settings()
	if err != nil {
		return errors.WithContext(err, "load settings")
	}

	logger := log.NewEntry(log.StandardLogger())
	if preset.Name != "" {
		logger = logger.WithField("preset", preset.Name)
	}
	if version, err := checkTool(ctx, settings.Transfer.Binary); err != nil {
		logger.WithError(err).Warn("Transfer tool check failed. Transfers will likely fail")
		if msg, ok := errors.GetFriendlyMessage(err); ok {
			logger.Warn(msg)
		}
	} else {
		logger.WithField("version", version).Debug("Found transfer tool")
	}

	sub, err := subscribe(local, settings, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	invoker := transfer.NewRclone(settings.Transfer.Binary, settings.Transfer.Timeout,
		settings.Transfer.ExtraArgs, logger)
	e, err := newEngine(local, remote, invoker, sub.C,
		engine.WithLogger(logger),
		engine.WithInterval(settings.Interval),
		engine.WithDebounce(settings.Debounce))
	if err != nil {
		return localDirError(err, preset)
	}

	err = runEngine(ctx, e)
	stats := e.Stats()
	logger.WithFields(log.Fields{
		"pulls":    stats.Pulls,
		"pushes":   stats.Pushes,
		"failures": stats.Failures,
	}).Info("Stopped syncing")

	if err != nil && err != context.Canceled {
		return errors.WithContext(err, "sync")
	}
	return nil
}

// getPreset looks up the preset named by the only argument, or builds an
// anonymous one from a local path and a remote.
func getPreset(store *config.Store, args []string) (config.Preset, error) {
	if len(args) == 2 {
		return config.Preset{Source: args[0], Dest: args[1]}, nil
	}

	preset, err := store.Resolve(args[0])
	if err != nil {
		return config.Preset{}, errors.WithContext(err, "resolve preset")
	}
	return preset, nil
}

// expandRemote expands `~` in a remote that is a plain local path. Remotes
// of the form `name:path` are passed to rclone untouched.
func expandRemote(remote string) (string, error) {
	if !strings.HasPrefix(remote, "~") {
		return remote, nil
	}

	firstElem := strings.SplitN(filepath.ToSlash(remote), "/", 2)[0]
	if strings.Contains(firstElem, ":") {
		return remote, nil
	}
	return homedirExpand(remote)
}

// subscribe watches `local` with the configured backend. If there are too
// many directories for fsnotify, it falls back to polling.
func subscribe(local string, settings config.Settings, logger log.FieldLogger) (
	*fswatch.Subscription, error) {

	opts := fswatch.Options{
		Latency:      settings.Latency,
		PollInterval: settings.PollInterval,
		Log:          logger,
	}

	if settings.Watcher == config.WatcherPoll {
		sub, err := poll(local, opts)
		if err != nil {
			return nil, watchError(err, local)
		}
		return sub, nil
	}

	sub, err := watch(local, opts)
	if err == nil {
		return sub, nil
	}

	if !fswatch.IsResourceLimit(err) {
		return nil, watchError(err, local)
	}

	logger.WithError(err).Warnf("Too many files to watch for changes. "+
		"Polling for changes every %s instead", settings.PollInterval)
	logger.Warn("Raise fs.inotify.max_user_watches, or set `settings.watcher: poll` " +
		"in the san config to skip this check.")

	sub, err = poll(local, opts)
	if err != nil {
		return nil, watchError(err, local)
	}
	return sub, nil
}

func watchError(err error, local string) error {
	if friendly := pathError(err, local); friendly != nil {
		return friendly
	}
	return errors.WithContext(err, "watch files")
}

func localDirError(err error, preset config.Preset) error {
	if friendly := pathError(err, preset.Source); friendly != nil {
		return friendly
	}
	return errors.WithContext(err, "create sync engine")
}

// pathError converts errors about a missing or invalid local directory into
// friendly errors. It returns nil for all other errors.
func pathError(err error, local string) error {
	switch rootCause := errors.RootCause(err).(type) {
	case errors.FileNotFound:
		return errors.NewFriendlyError("Failed to start syncing.\n"+
			"The local directory %q doesn't exist.\n\n"+
			"Is the source path correct?", local)
	case errors.NotADirectory:
		return errors.NewFriendlyError("Failed to start syncing.\n"+
			"%q is not a directory.\n\n"+
			"Is the source path correct?", rootCause.Path)
	}
	return nil
}

package config

import (
	"time"

	"github.com/sidkik/san/pkg/errors"
)

// Watcher backends understood by the `settings.watcher` field.
const (
	WatcherFsnotify = "fsnotify"
	WatcherPoll     = "poll"
)

// Settings tunes the sync engine. They're read from the optional top-level
// `settings` mapping of the config document:
//
//	settings:
//	  interval: 1s
//	  debounce: 1s
//	  latency: 2s
//	  poll_interval: 2s
//	  watcher: fsnotify
//	  transfer:
//	    binary: rclone
//	    timeout: 0s
//	    extra_args: ["--fast-list"]
type Settings struct {
	// Interval is how long the engine idles between reconcile cycles.
	Interval time.Duration

	// Debounce is how long the engine waits for a change signal after each
	// pull before deciding not to push.
	Debounce time.Duration

	// Latency is the window in which the change notifier coalesces bursts of
	// filesystem events into a single signal.
	Latency time.Duration

	// PollInterval is how often the polling watcher rescans the tree.
	PollInterval time.Duration

	Watcher  string
	Transfer TransferSettings
}

// TransferSettings configures the external transfer tool.
type TransferSettings struct {
	Binary string

	// Timeout bounds each transfer. Zero means no timeout.
	Timeout time.Duration

	ExtraArgs []string
}

// DefaultSettings returns the reference cadence.
func DefaultSettings() Settings {
	return Settings{
		Interval:     time.Second,
		Debounce:     time.Second,
		Latency:      2 * time.Second,
		PollInterval: 2 * time.Second,
		Watcher:      WatcherFsnotify,
		Transfer: TransferSettings{
			Binary: "rclone",
		},
	}
}

type rawSettings struct {
	Interval     string      `yaml:"interval"`
	Debounce     string      `yaml:"debounce"`
	Latency      string      `yaml:"latency"`
	PollInterval string      `yaml:"poll_interval"`
	Watcher      string      `yaml:"watcher"`
	Transfer     rawTransfer `yaml:"transfer"`
}

type rawTransfer struct {
	Binary    string   `yaml:"binary"`
	Timeout   string   `yaml:"timeout"`
	ExtraArgs []string `yaml:"extra_args"`
}

// Settings reads the engine settings from the document, filling in defaults
// for anything that isn't set.
func (s *Store) Settings() (Settings, error) {
	doc, err := s.load()
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	_, node := lookup(doc.top(), settingsKey)
	if node == nil {
		return settings, nil
	}

	var raw rawSettings
	if err := node.Decode(&raw); err != nil {
		return Settings{}, errors.ParseError{Path: s.path, Err: errors.WithContext(err, settingsKey)}
	}

	if err := raw.apply(&settings); err != nil {
		return Settings{}, errors.ParseError{Path: s.path, Err: errors.WithContext(err, settingsKey)}
	}
	return settings, nil
}

func (raw rawSettings) apply(settings *Settings) error {
	durations := []struct {
		field     string
		value     string
		dst       *time.Duration
		allowZero bool
	}{
		{"interval", raw.Interval, &settings.Interval, false},
		{"debounce", raw.Debounce, &settings.Debounce, false},
		{"latency", raw.Latency, &settings.Latency, true},
		{"poll_interval", raw.PollInterval, &settings.PollInterval, false},
		{"transfer.timeout", raw.Transfer.Timeout, &settings.Transfer.Timeout, true},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return errors.WithContext(err, d.field)
		}
		if parsed < 0 || (parsed == 0 && !d.allowZero) {
			return errors.Errorf("%s: must be positive, got %s", d.field, d.value)
		}
		*d.dst = parsed
	}

	switch raw.Watcher {
	case "":
	case WatcherFsnotify, WatcherPoll:
		settings.Watcher = raw.Watcher
	default:
		return errors.Errorf("watcher: unknown backend %q (must be %s or %s)",
			raw.Watcher, WatcherFsnotify, WatcherPoll)
	}

	if raw.Transfer.Binary != "" {
		settings.Transfer.Binary = raw.Transfer.Binary
	}
	settings.Transfer.ExtraArgs = raw.Transfer.ExtraArgs
	return nil
}

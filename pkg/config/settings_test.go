package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/san/pkg/errors"
)

func TestSettings(t *testing.T) {
	tests := []struct {
		name        string
		contents    string
		expSettings Settings
		expErr      string
	}{
		{
			name:        "Defaults",
			contents:    "presets: {}\n",
			expSettings: DefaultSettings(),
		},
		{
			name: "Overrides",
			contents: `settings:
  interval: 5s
  debounce: 500ms
  latency: 0s
  poll_interval: 10s
  watcher: poll
  transfer:
    binary: /usr/local/bin/rclone
    timeout: 10m
    extra_args: ["--fast-list", "-v"]
`,
			expSettings: Settings{
				Interval:     5 * time.Second,
				Debounce:     500 * time.Millisecond,
				Latency:      0,
				PollInterval: 10 * time.Second,
				Watcher:      WatcherPoll,
				Transfer: TransferSettings{
					Binary:    "/usr/local/bin/rclone",
					Timeout:   10 * time.Minute,
					ExtraArgs: []string{"--fast-list", "-v"},
				},
			},
		},
		{
			name:     "Bad duration",
			contents: "settings:\n  interval: soon\n",
			expErr:   `settings: interval: time: invalid duration "soon"`,
		},
		{
			name:     "Zero interval",
			contents: "settings:\n  interval: 0s\n",
			expErr:   "settings: interval: must be positive, got 0s",
		},
		{
			name:     "Negative timeout",
			contents: "settings:\n  transfer:\n    timeout: -1s\n",
			expErr:   "settings: transfer.timeout: must be positive, got -1s",
		},
		{
			name:     "Unknown watcher",
			contents: "settings:\n  watcher: inotify\n",
			expErr:   `settings: watcher: unknown backend "inotify" (must be fsnotify or poll)`,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			store, _ := newTestStore(t, test.contents)
			settings, err := store.Settings()
			if test.expErr != "" {
				var parseErr errors.ParseError
				require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
				assert.EqualError(t, parseErr.Err, test.expErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expSettings, settings)
		})
	}
}

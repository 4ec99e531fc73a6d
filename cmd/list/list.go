package list

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/pkg/config"
	"github.com/sidkik/san/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	openStore           = util.OpenStore
)

// New creates a new `list` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the names of the registered presets, one per line",
		Args:  util.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := list(store); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func list(store *config.Store) error {
	names, err := store.List()
	if err != nil {
		return errors.WithContext(err, "list presets")
	}

	if len(names) == 0 {
		log.WithField("path", store.Path()).Info(
			"No presets registered. Create one with `san add <name> <source> <dest>`")
		return nil
	}

	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

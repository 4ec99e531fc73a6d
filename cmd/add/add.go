package add

import (
	"fmt"
	"io"
	"os"

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

// New creates a new `add` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <source> <dest>",
		Short: "Register a preset that syncs a local directory with a remote",
		Long: "Register a preset that syncs the local directory <source> with the\n" +
			"rclone remote <dest>. Adding a preset that already exists replaces it.",
		Example: "  san add Docs ~/docs gdrive:/docs",
		Args:    util.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			preset := config.Preset{Name: args[0], Source: args[1], Dest: args[2]}
			if err := add(store, preset); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func add(store *config.Store, preset config.Preset) error {
	if err := store.Register(preset); err != nil {
		return errors.WithContext(err, "register preset")
	}

	fmt.Fprintf(stdout, "Added preset %q: %s -> %s\n", preset.Name, preset.Source, preset.Dest)
	return nil
}

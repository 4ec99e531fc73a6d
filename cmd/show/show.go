package show

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/pkg/config"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	openStore           = util.OpenStore
)

// New creates a new `show` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the source and destination of a preset",
		Args:  util.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := show(store, args[0]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func show(store *config.Store, name string) error {
	preset, err := store.Resolve(name)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "name:   %s\nsource: %s\ndest:   %s\n",
		preset.Name, preset.Source, preset.Dest)
	return nil
}

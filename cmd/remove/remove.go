package remove

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
	stdout        io.Writer = os.Stdout
	openStore               = util.OpenStore
	promptYesOrNo           = util.PromptYesOrNo
)

// New creates a new `remove` command.
func New() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a preset. Files at the source and destination are untouched",
		Args:  util.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := remove(store, args[0], yes); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Don't prompt for confirmation")
	return cmd
}

func remove(store *config.Store, name string, yes bool) error {
	preset, err := store.Resolve(name)
	if err != nil {
		// Malformed presets can still be removed.
		if _, ok := errors.RootCause(err).(errors.MissingFieldError); !ok {
			return err
		}
	}

	if !yes {
		prompt := fmt.Sprintf("Remove preset %q (%s -> %s)?", name, preset.Source, preset.Dest)
		ok, err := promptYesOrNo(prompt)
		if err != nil {
			return errors.WithContext(err, "prompt")
		}
		if !ok {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if err := store.Remove(name); err != nil {
		return errors.WithContext(err, "remove preset")
	}
	fmt.Fprintf(stdout, "Removed preset %q\n", name)
	return nil
}

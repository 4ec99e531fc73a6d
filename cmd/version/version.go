package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/buger/goterm"
	"github.com/spf13/cobra"

	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/pkg/errors"
	"github.com/sidkik/san/pkg/transfer"
	"github.com/sidkik/san/pkg/version"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	openStore           = util.OpenStore
	checkTool           = transfer.CheckTool
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of san and of the transfer tool",
		Args:  util.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			binary := transfer.DefaultBinary
			if store, err := openStore(cmd); err == nil {
				if settings, err := store.Settings(); err == nil {
					binary = settings.Transfer.Binary
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			run(ctx, binary)
		},
	}
}

func run(ctx context.Context, binary string) {
	fmt.Fprintf(stdout, "san version:     %s\n", version.Version)

	toolVersion, err := checkTool(ctx, binary)
	switch {
	case toolVersion == nil:
		msg := err.Error()
		if friendly, ok := errors.GetFriendlyMessage(err); ok {
			msg = friendly
		}
		fmt.Fprintf(stdout, "%s version: %s\n", binary, goterm.Color("unknown", goterm.RED))
		fmt.Fprintln(stdout, msg)
	case err != nil:
		fmt.Fprintf(stdout, "%s version: %s (minimum %s)\n", binary,
			goterm.Color(toolVersion.String(), goterm.YELLOW), transfer.MinimumVersion)
	default:
		fmt.Fprintf(stdout, "%s version: %s\n", binary,
			goterm.Color(toolVersion.String(), goterm.GREEN))
	}
}

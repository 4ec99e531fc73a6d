package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/san/pkg/config"
	"github.com/sidkik/san/pkg/errors"
)

// ConfigFlag is the name of the persistent flag that overrides the location
// of the config document.
const ConfigFlag = "config"

// Mocked for unit testing.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandleFatalError prints the error and exits. Friendly errors are printed
// as is, and all other errors are printed with their full context.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
		log.WithError(err).Debug("Fatal error")
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	exit(1)
}

// HandlePanic logs the stack trace of a panic and exits. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		exit(1)
	}
}

// OpenStore opens the config store, respecting the `--config` flag if the
// command has it.
func OpenStore(cmd *cobra.Command) (*config.Store, error) {
	var override string
	if flag := cmd.Flags().Lookup(ConfigFlag); flag != nil {
		override = flag.Value.String()
	}

	store, err := config.Open(override)
	if err != nil {
		return nil, errors.WithContext(err, "open config")
	}
	return store, nil
}

// PromptYesOrNo asks the user a yes or no question, and returns their
// answer. Anything other than "y" or "yes" is treated as no.
func PromptYesOrNo(prompt string) (bool, error) {
	fmt.Fprintf(stdout, "%s (y/N) ", prompt)
	answer, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.WithContext(err, "read answer")
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ExactArgs is like cobra.ExactArgs, but the error shows the command's usage
// line instead of just the argument count.
func ExactArgs(n int) cobra.PositionalArgs {
	return RangeArgs(n, n)
}

// RangeArgs is like cobra.RangeArgs, but the error shows the command's usage
// line.
func RangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			return errors.NewFriendlyError("Usage: %s\n\n"+
				"Run `%s --help` for more information.",
				cmd.UseLine(), cmd.CommandPath())
		}
		return nil
	}
}

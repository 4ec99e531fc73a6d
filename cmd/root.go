package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/san/cmd/add"
	"github.com/sidkik/san/cmd/bugtool"
	"github.com/sidkik/san/cmd/list"
	"github.com/sidkik/san/cmd/remove"
	"github.com/sidkik/san/cmd/show"
	syncCmd "github.com/sidkik/san/cmd/sync"
	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/cmd/version"
	"github.com/sidkik/san/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SAN_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "san",
		Short: "Keep local directories in sync with rclone remotes",
		Long: "san keeps a local directory in sync with an rclone remote. Pairs of\n" +
			"directories and remotes are saved as named presets in the config\n" +
			"document (" + config.DefaultPath() + " by default).",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose || os.Getenv(verboseLogKey) == "true" {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().String(util.ConfigFlag, "",
		"Path to the config document. Overrides $"+config.ConfigPathEnv+".")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log debug messages. Same as setting "+verboseLogKey+"=true.")

	rootCmd.AddCommand(
		add.New(),
		bugtool.New(),
		list.New(),
		remove.New(),
		show.New(),
		syncCmd.New(),
		version.New(),
	)
	return rootCmd
}

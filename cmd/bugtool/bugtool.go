package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sidkik/san/cmd/util"
	"github.com/sidkik/san/pkg/config"
	"github.com/sidkik/san/pkg/errors"
	"github.com/sidkik/san/pkg/transfer"
	"github.com/sidkik/san/pkg/version"
)

// Mocked for unit testing.
var (
	fs                  = afero.NewOsFs()
	stdout    io.Writer = os.Stdout
	openStore           = util.OpenStore
	environ             = os.Environ
	toolVersion         = transfer.VersionOutput
)

// archiveRoot is the directory that all files in the archive are nested
// under.
const archiveRoot = "san-bug-info"

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool",
		Short: "Generate an archive for debugging san",
		Args:  util.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			store, err := openStore(cmd)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := run(store, out); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func run(store *config.Store, out string) error {
	tmpdir, err := afero.TempDir(fs, "", "san-bug-tool")
	if err != nil {
		return errors.NewFriendlyError("Failed to create out directory:\n%s", err)
	}
	defer func() {
		if err := fs.RemoveAll(tmpdir); err != nil {
			log.WithError(err).WithField("path", tmpdir).Warn("Failed to clean up")
		}
	}()

	setupInfo(tmpdir, store)

	if out == "" {
		out = fmt.Sprintf("san-bug-info-%s.tar.gz",
			time.Now().Format("Jan_02_2006-15-04-05"))
	}
	if err := tarDirectory(tmpdir, out); err != nil {
		return errors.NewFriendlyError("Failed to tar:\n%s", err)
	}

	msg := `Created bug information archive at '%s'.
You may want to edit the archive before sharing it, since remote names and
paths can be sensitive.
The archive contains:
 * The san config document.
 * The settings san resolved from it.
 * The version of san and of the transfer tool.
 * The SAN_* and XDG_* environment variables.
`
	fmt.Fprintf(stdout, msg, out)
	return nil
}

// setupInfo collects as much information as possible. Failures are logged
// rather than returned so that one missing piece doesn't prevent the rest
// from being collected.
func setupInfo(root string, store *config.Store) {
	if err := setupConfig(root, store); err != nil {
		log.WithError(err).Warn("Failed to setup config document")
	}

	settings, err := store.Settings()
	if err != nil {
		log.WithError(err).Warn("Failed to load settings")
		settings = config.DefaultSettings()
	} else if err := setupSettings(root, settings); err != nil {
		log.WithError(err).Warn("Failed to setup settings")
	}

	if err := setupVersion(root, settings.Transfer.Binary); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	if err := setupEnv(root); err != nil {
		log.WithError(err).Warn("Failed to setup environment")
	}
}

func setupConfig(root string, store *config.Store) error {
	in, err := fs.Open(store.Path())
	if err != nil {
		return errors.WithContext(err, "open config")
	}
	defer in.Close()

	out, err := fs.Create(filepath.Join(root, "config.yaml"))
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

type settingsDump struct {
	Interval     string   `yaml:"interval"`
	Debounce     string   `yaml:"debounce"`
	Latency      string   `yaml:"latency"`
	PollInterval string   `yaml:"poll_interval"`
	Watcher      string   `yaml:"watcher"`
	Binary       string   `yaml:"binary"`
	Timeout      string   `yaml:"timeout"`
	ExtraArgs    []string `yaml:"extra_args,omitempty"`
}

func setupSettings(root string, settings config.Settings) error {
	dump := settingsDump{
		Interval:     settings.Interval.String(),
		Debounce:     settings.Debounce.String(),
		Latency:      settings.Latency.String(),
		PollInterval: settings.PollInterval.String(),
		Watcher:      settings.Watcher,
		Binary:       settings.Transfer.Binary,
		Timeout:      settings.Transfer.Timeout.String(),
		ExtraArgs:    settings.Transfer.ExtraArgs,
	}

	settingsBytes, err := yaml.Marshal(dump)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, filepath.Join(root, "settings.yaml"), settingsBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func setupVersion(root, binary string) error {
	out, err := fs.Create(filepath.Join(root, "version"))
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer out.Close()

	fmt.Fprintf(out, "san version: %s\n", version.Version)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	toolOut, err := toolVersion(ctx, binary)
	if err != nil {
		fmt.Fprintf(out, "%s version failed: %s\n", binary, err)
	}
	fmt.Fprintf(out, "\n$ %s version\n%s", binary, toolOut)
	return nil
}

func setupEnv(root string) error {
	var vars []string
	for _, kv := range environ() {
		if strings.HasPrefix(kv, "SAN_") || strings.HasPrefix(kv, "XDG_") {
			vars = append(vars, kv)
		}
	}
	sort.Strings(vars)

	contents := strings.Join(vars, "\n")
	if contents != "" {
		contents += "\n"
	}
	if err := afero.WriteFile(fs, filepath.Join(root, "env"), []byte(contents), 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func tarDirectory(src, outPath string) (err error) {
	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	gzw := gzip.NewWriter(out)
	tw := tar.NewWriter(gzw)

	// The writers must be closed innermost first to flush the archive.
	defer func() {
		closers := []struct {
			name string
			c    io.Closer
		}{{"tar", tw}, {"gzip", gzw}, {"destination", out}}
		for _, closer := range closers {
			if closeErr := closer.c.Close(); closeErr != nil && err == nil {
				err = errors.WithContext(closeErr, fmt.Sprintf("close %s", closer.name))
			}
		}
	}()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("make header %s", file))
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s to %s", file, src))
		}

		header.Name = filepath.Join(archiveRoot, relPath)
		if err := tw.WriteHeader(header); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s header", file))
		}

		// Only write contents if it's a file (i.e. not a directory).
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("open %s", file))
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.WithContext(err, fmt.Sprintf("copy %s", file))
		}
		return nil
	})
}

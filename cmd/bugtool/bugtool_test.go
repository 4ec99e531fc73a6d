package bugtool

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/san/pkg/config"
	"github.com/sidkik/san/pkg/version"
)

type file struct {
	path, contents string
}

func TestSetupConfig(t *testing.T) {
	tests := []struct {
		name      string
		mockFiles []file
		expFiles  []file
		expError  error
	}{
		{
			name:      "Config exists",
			mockFiles: []file{{"/config.yaml", "presets: {}\n"}},
			expFiles:  []file{{"root/config.yaml", "presets: {}\n"}},
		},
		{
			name:     "Config doesn't exist",
			expError: errors.New("open config: open /config.yaml: file does not exist"),
		},
	}

	for _, test := range tests {
		fs = afero.NewMemMapFs()
		assert.NoError(t, setupFiles(test.mockFiles))
		assert.NoError(t, fs.Mkdir("root", 0755))

		err := setupConfig("root", config.NewStore(fs, "/config.yaml"))
		if test.expError == nil {
			assert.NoError(t, err, test.name)
		} else {
			assert.EqualError(t, err, test.expError.Error(), test.name)
		}
		assertFiles(t, test.expFiles, test.name)
	}
}

func TestSetupSettings(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, fs.Mkdir("root", 0755))

	settings := config.DefaultSettings()
	settings.Transfer.ExtraArgs = []string{"--fast-list"}
	require.NoError(t, setupSettings("root", settings))

	assertFiles(t, []file{{"root/settings.yaml", `interval: 1s
debounce: 1s
latency: 2s
poll_interval: 2s
watcher: fsnotify
binary: rclone
timeout: 0s
extra_args:
    - --fast-list
`}}, "setupSettings should dump the resolved settings")
}

func TestSetupVersion(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, fs.Mkdir("root", 0755))

	toolVersion = func(_ context.Context, binary string) (string, error) {
		assert.Equal(t, "rclone", binary)
		return "rclone v1.65.0\n- os/version: debian\n", nil
	}
	require.NoError(t, setupVersion("root", "rclone"))
	assertFiles(t, []file{{"root/version",
		"san version: " + version.Version + "\n" +
			"\n$ rclone version\nrclone v1.65.0\n- os/version: debian\n"}},
		"setupVersion should record both versions")

	toolVersion = func(context.Context, string) (string, error) {
		return "", errors.New("exec: \"rclone\": executable file not found in $PATH")
	}
	require.NoError(t, setupVersion("root", "rclone"))
	assertFiles(t, []file{{"root/version",
		"san version: " + version.Version + "\n" +
			"rclone version failed: exec: \"rclone\": executable file not found in $PATH\n" +
			"\n$ rclone version\n"}},
		"setupVersion should record tool failures")
}

func TestSetupEnv(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, fs.Mkdir("root", 0755))

	environ = func() []string {
		return []string{"PATH=/bin", "SAN_LOG_VERBOSE=true", "HOME=/home/u",
			"SAN_CONFIG=/tmp/config.yaml", "XDG_CONFIG_HOME=/home/u/.config"}
	}
	require.NoError(t, setupEnv("root"))
	assertFiles(t, []file{{"root/env",
		"SAN_CONFIG=/tmp/config.yaml\nSAN_LOG_VERBOSE=true\nXDG_CONFIG_HOME=/home/u/.config\n"}},
		"setupEnv should only include san and XDG variables")
}

func TestRun(t *testing.T) {
	fs = afero.NewMemMapFs()
	var out bytes.Buffer
	stdout = &out
	toolVersion = func(context.Context, string) (string, error) {
		return "rclone v1.65.0\n", nil
	}
	environ = func() []string { return nil }

	store := config.NewStore(fs, "/config.yaml")
	require.NoError(t, store.Register(config.Preset{
		Name: "Docs", Source: "/home/u/docs", Dest: "remote:/docs"}))

	require.NoError(t, run(store, "/bug.tar.gz"))
	assert.Contains(t, out.String(), "Created bug information archive at '/bug.tar.gz'")

	archive, err := afero.ReadFile(fs, "/bug.tar.gz")
	require.NoError(t, err)

	files := readArchive(t, archive)
	assert.Contains(t, files["san-bug-info/config.yaml"], "Docs:")
	assert.Contains(t, files, "san-bug-info/settings.yaml")
	assert.Contains(t, files["san-bug-info/version"], "rclone v1.65.0")
	assert.Equal(t, "", files["san-bug-info/env"])
}

// closeErrFs fails when closing files it created.
type closeErrFs struct {
	afero.Fs
}

func (c closeErrFs) Create(name string) (afero.File, error) {
	f, err := c.Fs.Create(name)
	if err != nil {
		return nil, err
	}
	return closeErrFile{f}, nil
}

type closeErrFile struct {
	afero.File
}

func (f closeErrFile) Close() error {
	f.File.Close()
	return errors.New("disk full")
}

func TestTarDirectoryCloseError(t *testing.T) {
	fs = closeErrFs{afero.NewMemMapFs()}
	defer func() { fs = afero.NewOsFs() }()

	require.NoError(t, setupFiles([]file{{"/info/version", "san version: dev"}}))
	err := tarDirectory("/info", "/bug.tar.gz")
	assert.EqualError(t, err, "close destination: disk full")
}

func readArchive(t *testing.T, archive []byte) map[string]string {
	gzr, err := gzip.NewReader(bytes.NewReader(archive))
	require.NoError(t, err)
	tr := tar.NewReader(gzr)

	files := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return files
		}
		require.NoError(t, err)

		if header.Typeflag != tar.TypeReg {
			continue
		}
		contents, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = string(contents)
	}
}

func setupFiles(files []file) error {
	for _, f := range files {
		if err := afero.WriteFile(fs, f.path, []byte(f.contents), 0644); err != nil {
			return err
		}
	}
	return nil
}

func assertFiles(t *testing.T, files []file, msg string) {
	for _, f := range files {
		contents, err := afero.ReadFile(fs, f.path)
		assert.NoError(t, err, msg)
		assert.Equal(t, f.contents, string(contents), msg)
	}
}

//go:build ci

package ci

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sidkik/san/pkg/errors"
)

type file struct {
	path     string
	contents string
	modTime  time.Time
}

func (f file) WithContents(contents string) file {
	f.contents = contents
	return f
}

func (f file) WithModTime(modTime time.Time) file {
	f.modTime = modTime
	return f
}

func randomFile(path string) file {
	return file{
		path:     path,
		contents: strconv.Itoa(rand.Int()),
		modTime:  time.Now().Add(-time.Duration(rand.Intn(3600)) * time.Second),
	}
}

// mockFs is a scratch directory holding the local tree, the directory
// standing in for the remote, and the san config document.
type mockFs struct {
	root       string
	localDir   string
	remoteDir  string
	configPath string
}

func newMockFs() (mockFs, error) {
	root, err := os.MkdirTemp("", "san-ci")
	if err != nil {
		return mockFs{}, errors.WithContext(err, "make root dir")
	}

	fs := mockFs{
		root:       root,
		localDir:   filepath.Join(root, "local"),
		remoteDir:  filepath.Join(root, "remote"),
		configPath: filepath.Join(root, "config", "config.yaml"),
	}
	for _, dir := range []string{fs.localDir, fs.remoteDir} {
		if err := os.Mkdir(dir, 0755); err != nil {
			return mockFs{}, errors.WithContext(err, "make directory")
		}
	}
	return fs, nil
}

func (fs mockFs) cleanup() error {
	return os.RemoveAll(fs.root)
}

func createFile(dir string, toCreate file) error {
	path := filepath.Join(dir, toCreate.path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	if err := os.WriteFile(path, []byte(toCreate.contents), 0644); err != nil {
		return errors.WithContext(err, "write")
	}

	if err := os.Chtimes(path, time.Now(), toCreate.modTime); err != nil {
		return errors.WithContext(err, "chtimes")
	}
	return nil
}

func readFile(dir, path string) (string, error) {
	contents, err := os.ReadFile(filepath.Join(dir, path))
	return string(contents), err
}

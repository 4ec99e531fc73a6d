package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/san/pkg/errors"
)

const (
	// ConfigPathEnv overrides the location of the config document.
	ConfigPathEnv = "SAN_CONFIG"

	// configRelPath is the location of the config document relative to the
	// user's XDG config directory.
	configRelPath = "san/config.yaml"
)

// Mocked in tests.
var (
	homedirExpand = homedir.Expand
	configHome    = func() string { return xdg.ConfigHome }
	getenv        = os.Getenv
)

// DefaultPath returns the per-user location of the config document. It
// doesn't create anything on disk.
func DefaultPath() string {
	return filepath.Join(configHome(), configRelPath)
}

// GetConfigPath resolves the path of the config document. An explicit
// `override` wins, followed by the SAN_CONFIG environment variable, followed
// by DefaultPath. The result is expanded, so it can be directly passed to
// file operations.
func GetConfigPath(override string) (string, error) {
	path := override
	if path == "" {
		path = getenv(ConfigPathEnv)
	}
	if path == "" {
		return DefaultPath(), nil
	}

	expanded, err := homedirExpand(path)
	if err != nil {
		return "", errors.WithContext(err, "expand config path")
	}
	return filepath.Clean(expanded), nil
}

// Open returns a Store for the config document at the location chosen by
// GetConfigPath.
func Open(override string) (*Store, error) {
	path, err := GetConfigPath(override)
	if err != nil {
		return nil, err
	}
	return NewStore(fs, path), nil
}

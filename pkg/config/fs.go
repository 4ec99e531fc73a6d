package config

import "github.com/spf13/afero"

// fs backs the Store returned by Open. It will be overridden by
// afero.NewMemMapFs() in the tests.
var fs = afero.NewOsFs()

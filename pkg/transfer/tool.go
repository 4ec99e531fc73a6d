package transfer

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	goVersion "github.com/hashicorp/go-version"

	"github.com/sidkik/san/pkg/errors"
)

// MinimumVersion is the oldest rclone release that we've verified supports
// `copy --update` with remote modification times.
var MinimumVersion = goVersion.Must(goVersion.NewVersion("1.40.0"))

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(\.\d+)?)`)

// Mocked for unit testing.
var runVersionCommand = func(ctx context.Context, binary string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, "version").CombinedOutput()
}

// CheckTool runs `<binary> version` and verifies that the tool is new enough.
// It returns the detected version.
func CheckTool(ctx context.Context, binary string) (*goVersion.Version, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	output, err := runVersionCommand(ctx, binary)
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			return nil, errors.NewFriendlyError("The transfer tool %q could not be found.\n"+
				"Install rclone (https://rclone.org/install/) or set "+
				"`settings.transfer.binary` in the san config.", binary)
		}
		return nil, errors.WithContext(err, strings.TrimSpace(string(output)))
	}

	version, err := ParseToolVersion(string(output))
	if err != nil {
		return nil, err
	}

	if version.LessThan(MinimumVersion) {
		return version, errors.NewFriendlyError("%s %s is too old. "+
			"Please upgrade to at least %s.", binary, version, MinimumVersion)
	}
	return version, nil
}

// VersionOutput returns the raw output of `<binary> version`.
func VersionOutput(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	output, err := runVersionCommand(ctx, binary)
	return string(output), err
}

// ParseToolVersion extracts the version from the output of `rclone version`,
// whose first line looks like `rclone v1.65.0`.
func ParseToolVersion(output string) (*goVersion.Version, error) {
	firstLine := strings.SplitN(strings.TrimSpace(output), "\n", 2)[0]
	match := versionPattern.FindStringSubmatch(firstLine)
	if match == nil {
		return nil, errors.Errorf("no version found in %q", firstLine)
	}

	version, err := goVersion.NewVersion(match[1])
	if err != nil {
		return nil, errors.WithContext(err, "parse version")
	}
	return version, nil
}

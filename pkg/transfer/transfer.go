// Package transfer invokes the external tool that copies files between the
// local tree and the remote location.
package transfer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the outcome of a single transfer.
type Status int

const (
	// OK means the tool exited successfully.
	OK Status = iota

	// Failed means the tool couldn't be started, exited non-zero, or timed
	// out.
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result describes a completed transfer. Failures are reported here rather
// than as errors so that callers can't accidentally make their control flow
// depend on them.
type Result struct {
	Status Status

	// Reason explains a failure. Empty when Status is OK.
	Reason string

	// Output is the combined stdout and stderr of the tool.
	Output string

	// ExitCode is -1 if the tool never exited on its own.
	ExitCode int

	Duration time.Duration
}

// OK returns whether the transfer succeeded.
func (r Result) OK() bool {
	return r.Status == OK
}

// Invoker copies files that are new or newer at `source` into `dest`. It
// never deletes files at `dest`, and blocks until the copy completes.
type Invoker interface {
	Transfer(ctx context.Context, source, dest string) Result
}

// DefaultBinary is the tool used when none is configured.
const DefaultBinary = "rclone"

// Rclone implements Invoker by shelling out to `rclone copy --update`.
type Rclone struct {
	// Binary is the rclone executable. It's looked up in $PATH if it isn't
	// an absolute path.
	Binary string

	// Timeout bounds each transfer. Zero means no timeout, so a hung tool
	// hangs the caller.
	Timeout time.Duration

	// ExtraArgs are inserted before the source and destination.
	ExtraArgs []string

	Log logrus.FieldLogger
}

// NewRclone creates an Invoker that runs the given rclone binary.
func NewRclone(binary string, timeout time.Duration, extraArgs []string, log logrus.FieldLogger) *Rclone {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Rclone{
		Binary:    binary,
		Timeout:   timeout,
		ExtraArgs: extraArgs,
		Log:       log,
	}
}

// Mocked for unit testing.
var (
	now = time.Now

	// waitDelay bounds how long a killed transfer may hold its output open,
	// for example through a child process that outlives it.
	waitDelay = 5 * time.Second
)

// Args returns the arguments passed to the tool to copy `source` into
// `dest`. `copy` leaves extraneous files at the destination alone, and
// `--update` skips files that are newer at the destination.
func (r *Rclone) Args(source, dest string) []string {
	args := []string{"copy", "--update"}
	args = append(args, r.ExtraArgs...)
	return append(args, source, dest)
}

// Transfer runs the tool to completion. Failures are logged and returned in
// the Result.
func (r *Rclone) Transfer(ctx context.Context, source, dest string) Result {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.logger().WithFields(logrus.Fields{
		"source": source,
		"dest":   dest,
	})

	start := now()
	cmd := exec.CommandContext(ctx, r.Binary, r.Args(source, dest)...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.CombinedOutput()
	result := Result{
		Status:   OK,
		Output:   string(output),
		ExitCode: exitCode(cmd, err),
		Duration: now().Sub(start),
	}

	if err != nil {
		result.Status = Failed
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			result.Reason = fmt.Sprintf("timed out after %s", r.Timeout)
		case ctx.Err() != nil:
			result.Reason = ctx.Err().Error()
		default:
			result.Reason = err.Error()
		}

		log.WithField("output", strings.TrimSpace(result.Output)).
			Warnf("Transfer failed: %s", result.Reason)
		return result
	}

	log.WithField("duration", result.Duration).Debug("Transfer complete")
	return result
}

func (r *Rclone) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func exitCode(cmd *exec.Cmd, err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	if err != nil || cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

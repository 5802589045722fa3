package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Command describes one child process run.
type Command struct {
	Binary string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
	// KillGrace is how long the process group has to exit after SIGTERM
	// before it is killed.
	KillGrace time.Duration
}

// Executor abstracts command execution for testability. Run blocks until the
// child exits. exitCode is -1 when the process never started or was killed by
// a signal.
type Executor interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// ErrStart marks failures to launch the child process.
var ErrStart = errors.New("start command")

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, spec Command) (int, error) {
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, unix.SIGTERM)
	}
	cmd.WaitDelay = spec.KillGrace

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrStart, err)
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		// WaitDelay only kills the leader; reap anything left in the group.
		_ = signalGroup(cmd, unix.SIGKILL)
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

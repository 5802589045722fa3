// Package daemonctl inspects and signals a running podwatch watcher from a
// separate CLI process. A watcher is identified by its per-root lock file;
// the pid file next to it names the process to signal.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"podwatch/internal/config"
	"podwatch/internal/daemon"
)

// ErrDaemonNotRunning indicates no watcher holds the lock for the root.
var ErrDaemonNotRunning = errors.New("podwatch is not watching this root")

// RuntimePaths locates the runtime files of the watcher for one root.
type RuntimePaths struct {
	Root        string
	LockPath    string
	PIDPath     string
	LogPointer  string
	ToolLogsDir string
}

// Resolve derives runtime paths for the configured run. The root must exist
// so it resolves to the same spelling the watcher hashed.
func Resolve(cfg *config.Config) (RuntimePaths, error) {
	run, err := cfg.ResolveRun()
	if err != nil {
		return RuntimePaths{}, err
	}
	lockPath := daemon.LockFilePath(cfg.Paths.LogDir, run.Root)
	return RuntimePaths{
		Root:        run.Root,
		LockPath:    lockPath,
		PIDPath:     daemon.PIDFilePath(lockPath),
		LogPointer:  LogPointer(cfg),
		ToolLogsDir: cfg.ToolLogDir(),
	}, nil
}

// LogPointer is the symlink to the newest watcher log.
func LogPointer(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "podwatch.log")
}

// ProcessInfo reports whether a watcher holds the lock and, when it does,
// the pid recorded next to it (0 when the pid file is missing).
func ProcessInfo(paths RuntimePaths) (bool, int, error) {
	held, err := lockHeld(paths.LockPath)
	if err != nil || !held {
		return false, 0, err
	}
	pid, err := readPID(paths.PIDPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return true, 0, err
	}
	return true, pid, nil
}

// Signal delivers sig to the running watcher and returns its pid.
func Signal(paths RuntimePaths, sig syscall.Signal) (int, error) {
	running, pid, err := ProcessInfo(paths)
	if err != nil {
		return 0, err
	}
	if !running {
		return 0, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine watcher pid (pid file: %s)", paths.PIDPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate watcher process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return 0, fmt.Errorf("signal watcher process %d: %w", pid, err)
	}
	return pid, nil
}

// Rescan asks the running watcher to walk its root again.
func Rescan(paths RuntimePaths) (int, error) {
	return Signal(paths, syscall.SIGHUP)
}

// StopResult captures the stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM and waits for the lock to be released. A
// watcher still holding it after gracePeriod is killed; in-flight tools are
// then reaped by the kernel with their process group left orphaned.
func StopAndTerminate(paths RuntimePaths, gracePeriod time.Duration) (StopResult, error) {
	pid, err := Signal(paths, syscall.SIGTERM)
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if err := WaitForRelease(paths.LockPath, gracePeriod); err == nil {
		return result, nil
	}
	if _, err := Signal(paths, syscall.SIGKILL); err != nil {
		if errors.Is(err, ErrDaemonNotRunning) {
			return result, nil
		}
		return result, err
	}
	result.ForcedKill = true
	if err := os.Remove(paths.PIDPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", paths.PIDPath, err)
	}
	return result, nil
}

// WaitForRelease polls until nobody holds lockPath or timeout elapses.
func WaitForRelease(lockPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		held, err := lockHeld(lockPath)
		if err != nil {
			return err
		}
		if !held {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("watcher did not stop within %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func lockHeld(lockPath string) (bool, error) {
	if _, err := os.Stat(lockPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	probe := flock.New(lockPath)
	locked, err := probe.TryRLock()
	if err != nil {
		return false, fmt.Errorf("probe lock %s: %w", lockPath, err)
	}
	if locked {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

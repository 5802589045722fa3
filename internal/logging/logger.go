package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"podwatch/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string
	// Format is console (the default) or json.
	Format string
	// OutputPaths and ErrorOutputPaths name files, or the streams "stdout"
	// and "stderr". Records go to the union of both lists.
	OutputPaths      []string
	ErrorOutputPaths []string
	// Development adds the call site to every record.
	Development bool
	// SessionID, when set, is stamped on every record as session_id.
	SessionID string
}

// New builds a logger from opts. Debug level implies Development.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := opts.Development || level.Level() <= slog.LevelDebug

	out, err := openOutputs(opts.OutputPaths, opts.ErrorOutputPaths)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(out, level, withSource)
	case "json":
		if handler, err = newJSONHandler(out, level, withSource); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if id := strings.TrimSpace(opts.SessionID); id != "" {
		handler = newStampHandler(handler, slog.String(FieldSessionID, id))
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the watcher logger from the [logging] table. Records go
// to stdout and, when logPath is set, to the run log as well. Non-empty fields
// of override win over the configured values.
func NewFromConfig(cfg *config.Config, logPath string, override Options) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console"}
	if cfg != nil {
		opts.Level = cfg.Logging.Level
		opts.Format = cfg.Logging.Format
	}
	if strings.TrimSpace(override.Level) != "" {
		opts.Level = override.Level
	}
	if strings.TrimSpace(override.Format) != "" {
		opts.Format = override.Format
	}
	opts.Development = override.Development
	opts.SessionID = override.SessionID

	opts.OutputPaths = []string{"stdout"}
	opts.ErrorOutputPaths = []string{"stderr"}
	if logPath = strings.TrimSpace(logPath); logPath != "" {
		opts.OutputPaths = append(opts.OutputPaths, logPath)
		opts.ErrorOutputPaths = append(opts.ErrorOutputPaths, logPath)
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openOutputs merges the two path lists into one writer. stderr is dropped
// when stdout is also requested so console records are not printed twice.
// With nothing usable, stdout is the destination.
func openOutputs(outputs, errorOutputs []string) (io.Writer, error) {
	var names []string
	for _, name := range append(slices.Clone(outputs), errorOutputs...) {
		if name = strings.TrimSpace(name); name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if slices.Contains(names, "stdout") {
		names = slices.DeleteFunc(names, func(n string) bool { return n == "stderr" })
	}

	writers := make([]io.Writer, 0, len(names))
	for _, name := range names {
		switch name {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			f, err := openLogFile(name)
			if err != nil {
				return nil, err
			}
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// openFiles shares one append handle per path between loggers.
var (
	openFilesMu sync.Mutex
	openFiles   = map[string]*os.File{}
)

func openLogFile(path string) (*os.File, error) {
	openFilesMu.Lock()
	defer openFilesMu.Unlock()
	if f, ok := openFiles[path]; ok {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	openFiles[path] = f
	return f, nil
}

// CloseFiles closes log files opened by New. Loggers writing to them must not
// be used afterwards.
func CloseFiles() {
	openFilesMu.Lock()
	defer openFilesMu.Unlock()
	for path, f := range openFiles {
		_ = f.Close()
		delete(openFiles, path)
	}
}

// NewWriterHandler returns a console handler writing to w. Callers tee it onto
// an existing logger to mirror records into a side file.
func NewWriterHandler(w io.Writer, level string) slog.Handler {
	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(level))
	return newConsoleHandler(w, lvl, false)
}

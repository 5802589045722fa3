package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podwatch/internal/config"
	"podwatch/internal/logging"
	"podwatch/internal/services"
)

func TestNewFromConfigWritesRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	logPath := filepath.Join(cfg.Paths.LogDir, "podwatch-test.log")

	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	logger, err := logging.NewFromConfig(&cfg, logPath, logging.Options{Level: "debug", SessionID: "session-1"})
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("daemon started", logging.String(logging.FieldRoot, "/data/exp"))
	logging.CloseFiles()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"msg":"daemon started"`, `"session_id":"session-1"`, `"root":"/data/exp"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in run log, got %q", fragment, content)
		}
	}
}

func TestNewFromConfigNilConfig(t *testing.T) {
	logger, err := logging.NewFromConfig(nil, "", logging.Options{})
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger.Enabled(context.Background(), -4) {
		t.Fatal("expected info default level")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
		SessionID:   "abc",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "daemon").Info("marker claimed",
		logging.String(logging.FieldMarker, "/data/run1/final_summary_x.txt"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode json log line %q: %v", content, err)
	}
	checks := map[string]string{
		"msg":                  "marker claimed",
		"level":                "info",
		logging.FieldComponent: "daemon",
		logging.FieldMarker:    "/data/run1/final_summary_x.txt",
		logging.FieldSessionID: "abc",
	}
	for key, want := range checks {
		if got, _ := record[key].(string); got != want {
			t.Fatalf("field %s = %q, want %q", key, got, want)
		}
	}
	if _, err := time.Parse(time.RFC3339Nano, record["ts"].(string)); err != nil {
		t.Fatalf("unexpected ts format: %v", err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), -4) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Enabled(context.Background(), 0) {
		t.Fatal("expected info to be enabled")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithMarker(ctx, "/data/run1/final_summary_a.txt")
	ctx = services.WithOrigin(ctx, "startup-scan")
	ctx = services.WithEventID(ctx, "evt-9")

	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{
		`"marker":"/data/run1/final_summary_a.txt"`,
		`"origin":"startup-scan"`,
		`"event_id":"evt-9"`,
	} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "pod5 folder not found", "pod5_missing",
		logging.String(logging.FieldImpact, "basecalling skipped"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"event_type":"pod5_missing"`, `"error_hint":`, `"impact":"basecalling skipped"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

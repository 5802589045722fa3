package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"podwatch/internal/config"
	"podwatch/internal/notifications"
	"podwatch/internal/testsupport"
)

func TestScanListsMarkersWithCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	runDir := filepath.Join(env.cfg.Run.Root, "sample_a", "20260101_1200_MN1_FAX1_abcd")
	testsupport.WriteMarker(t, runDir, "final_summary_FAX1_abcd.txt")
	testsupport.MakePod5(t, runDir)
	testsupport.WriteMarker(t, filepath.Join(env.cfg.Run.Root, "orphan"), "final_summary.txt")

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "final_summary_FAX1_abcd.txt")
	requireContains(t, out, "--duplex")
	requireContains(t, out, "cL_inline_unaligned_duplexReads.bam")
	requireContains(t, out, "not found")

	out, _, err = runCLI(t, []string{"scan", "--mode", "simplex"}, env.configPath)
	if err != nil {
		t.Fatalf("scan --mode simplex: %v", err)
	}
	requireContains(t, out, "simplex_basecalled.bam")
	requireContains(t, out, "--simplex")
}

func TestScanWithoutMarkers(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "No final_summary*.txt files found")
}

func TestScanPathOverride(t *testing.T) {
	env := setupCLITestEnv(t)
	other := t.TempDir()
	testsupport.WriteMarker(t, filepath.Join(other, "run"), "final_summary_x.txt")

	out, _, err := runCLI(t, []string{"scan", "--path", other}, env.configPath)
	if err != nil {
		t.Fatalf("scan --path: %v", err)
	}
	requireContains(t, out, "final_summary_x.txt")
}

func TestCheckPassesWithStubbedTool(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	env.cfg.Notifications.Recipients = nil
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Basecaller")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected error line:\n%s", out)
	}
}

func TestCheckReportsMissingTool(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Run.Tool = filepath.Join(t.TempDir(), "missing-dorado")
	env.cfg.Notifications.Recipients = nil
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatalf("expected check to fail\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, err.Error(), "checks failed")
}

type fakeNotifier struct {
	runs []config.MonitoredRun
	err  error
}

func (f *fakeNotifier) NotifyMarkerDetected(context.Context, config.MonitoredRun, string) error {
	return nil
}

func (f *fakeNotifier) TestNotification(_ context.Context, run config.MonitoredRun) error {
	f.runs = append(f.runs, run)
	return f.err
}

func stubNotifier(t *testing.T, fake *fakeNotifier) {
	t.Helper()
	prev := newNotifier
	newNotifier = func(*config.Config) notifications.Service { return fake }
	t.Cleanup(func() { newNotifier = prev })
}

func TestTestNotifySendsToRecipients(t *testing.T) {
	env := setupCLITestEnv(t)
	fake := &fakeNotifier{}
	stubNotifier(t, fake)

	out, _, err := runCLI(t, []string{"test-notify", "--recipients", "a@example.org,b@example.org"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent to 2 recipient(s)")
	if len(fake.runs) != 1 {
		t.Fatalf("expected one test notification, got %d", len(fake.runs))
	}
	if got := strings.Join(fake.runs[0].Recipients, ","); got != "a@example.org,b@example.org" {
		t.Fatalf("unexpected recipients %q", got)
	}
}

func TestTestNotifyRequiresRecipients(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Notifications.Recipients = nil
	writeTestConfig(t, env.configPath, env.cfg)
	fake := &fakeNotifier{}
	stubNotifier(t, fake)

	_, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no recipients") {
		t.Fatalf("expected no recipients error, got %v", err)
	}
	if len(fake.runs) != 0 {
		t.Fatal("notifier should not be called")
	}
}

func TestTestNotifySurfacesSendFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	fake := &fakeNotifier{err: errors.New("relay refused")}
	stubNotifier(t, fake)

	_, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "relay refused") {
		t.Fatalf("expected send failure, got %v", err)
	}
}

func TestWatchRequiresRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Run.Root = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"watch"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "run.root is required") {
		t.Fatalf("expected run.root error, got %v", err)
	}
}

package preflight

import (
	"context"
	"path/filepath"

	"podwatch/internal/config"
	"podwatch/internal/deps"
	"podwatch/internal/notifications"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Advisory results describe degraded but workable setups.
	Advisory bool
}

// RunAll executes all applicable preflight checks for the given config.
// getenv supplies SMTP credentials; the relay is contacted only when both are
// present.
func RunAll(ctx context.Context, cfg *config.Config, getenv func(string) string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckRootAccess("Monitored root", cfg.Run.Root))
	if cfg.Run.Root != "" {
		results = append(results, CheckWatchBackend(cfg.Run.Root, cfg.Watch.Backend))
	}
	results = append(results, CheckDirectoryAccess("Log directory", existingAncestor(cfg.Paths.LogDir)))
	results = append(results, CheckTool(cfg))

	if len(cfg.Notifications.Recipients) > 0 {
		creds := CheckSMTPCredentials(getenv)
		results = append(results, creds)
		if creds.Passed {
			results = append(results, CheckSMTPRelay(ctx, cfg.Notifications.SMTPHost, cfg.Notifications.SMTPPort))
		}
	}

	return results
}

// Failed returns the non-advisory results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckTool reports whether run.tool resolves to an executable.
func CheckTool(cfg *config.Config) Result {
	status := deps.CheckTool(cfg)
	if status.Available {
		return Result{Name: status.Name, Passed: true, Detail: status.Path}
	}
	return Result{Name: status.Name, Detail: status.Detail}
}

// CheckSMTPCredentials verifies that the mail credentials are exported.
func CheckSMTPCredentials(getenv func(string) string) Result {
	const name = "SMTP credentials"
	creds, err := notifications.CredentialsFromEnv(getenv)
	if err != nil {
		return Result{Name: name, Detail: "set " + notifications.EnvUser + " and " + notifications.EnvPassword}
	}
	return Result{Name: name, Passed: true, Detail: "sending as " + creds.User}
}

// existingAncestor returns the nearest existing directory of path, since the
// log directory is created on demand.
func existingAncestor(path string) string {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if _, err := statDir(p); err == nil {
			return p
		}
		if parent := filepath.Dir(p); parent == p {
			return path
		}
	}
}

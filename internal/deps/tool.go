// Package deps resolves the external programs podwatch starts.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"podwatch/internal/config"
)

// Tool is the lookup result for one executable.
type Tool struct {
	Name    string
	Command string
	// Path is the resolved executable when Available.
	Path      string
	Available bool
	// Detail explains why the tool is unavailable.
	Detail string
}

// Lookup resolves command the way exec.Command would. Bare names are
// searched on PATH; anything containing a slash must be an executable file.
func Lookup(name, command string) Tool {
	command = strings.TrimSpace(command)
	tool := Tool{Name: name, Command: command}
	if command == "" {
		tool.Detail = "command not configured"
		return tool
	}
	path, err := exec.LookPath(command)
	if err != nil {
		tool.Detail = lookupFailure(command)
		return tool
	}
	tool.Path = path
	tool.Available = true
	return tool
}

// CheckTool reports the basecaller configured in run.tool.
func CheckTool(cfg *config.Config) Tool {
	if cfg == nil {
		return Tool{Name: "Basecaller", Detail: "configuration unavailable"}
	}
	return Lookup("Basecaller", cfg.Run.Tool)
}

func lookupFailure(command string) string {
	if !strings.ContainsRune(command, '/') {
		return fmt.Sprintf("binary %q not found in PATH", command)
	}
	info, err := os.Stat(command)
	switch {
	case err != nil:
		return fmt.Sprintf("%s does not exist", command)
	case info.IsDir() || info.Mode().Perm()&0o111 == 0:
		return fmt.Sprintf("%s is not an executable file", command)
	}
	return fmt.Sprintf("%s cannot be executed", command)
}

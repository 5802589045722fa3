package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig []byte

const (
	userConfigPath    = "~/.config/podwatch/config.toml"
	projectConfigName = "podwatch.toml"
)

// DefaultConfigPath is where config init writes and where Load looks first.
func DefaultConfigPath() (string, error) {
	return ExpandPath(userConfigPath)
}

// Load reads the configuration at path, or the first existing default
// location when path is empty. It returns the normalized config, the path that
// was consulted and whether a file existed there. A missing file is not an
// error; defaults are used.
func Load(path string) (*Config, string, bool, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with a hook that runs after the file is decoded and before
// normalization, so command-line flags take precedence over the file.
func LoadWith(path string, override func(*Config)) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// decodeFile rejects unknown keys and reports TOML errors with their position.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)

	var strict *toml.StrictMissingError
	var syntax *toml.DecodeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &strict):
		return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
	case errors.As(err, &syntax):
		row, col := syntax.Position()
		return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
	default:
		return fmt.Errorf("parse config %s: %w", path, err)
	}
}

// locate resolves an explicit path as given. Without one it tries the user
// config and then podwatch.toml in the working directory, falling back to the
// user location when neither exists.
func locate(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// ExpandPath resolves a leading "~" to the home directory and returns an
// absolute, cleaned path. The empty string is returned unchanged.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the annotated sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, sampleConfig, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

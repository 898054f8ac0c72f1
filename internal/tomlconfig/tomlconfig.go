// Package tomlconfig loads and saves snake.AppConfig as TOML, the
// on-disk persistence format the GUI and CLI both read and write.
// Load applies path, extension, and size checks before parsing via
// pelletier/go-toml/v2; round-trips are exact.
package tomlconfig

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/snakecore/tagimage/internal/fsutil"
	"github.com/snakecore/tagimage/internal/security"
	"github.com/snakecore/tagimage/internal/snake"
)

// maxFileSize bounds how large a configuration file the loader will
// accept.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// fs is package-level so tests can substitute an in-memory filesystem
// without threading one through every call site; production code never
// touches it.
var fs fsutil.FileSystem = fsutil.OSFileSystem{}

// RootDir bounds the directories Load will read a config from. It
// defaults to the working directory; the CLI collaborator may override
// it to a dedicated configs directory before calling Load.
var RootDir = "."

// Load reads and validates an AppConfig from a TOML file at path. The
// path must have a .toml extension and must resolve inside RootDir,
// rejecting a "../" escape smuggled through a CLI-supplied path.
func Load(path string) (snake.AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".toml" {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: config file must have .toml extension, got %q", ext)
	}
	if err := security.ValidatePathWithinDirectory(cleanPath, RootDir); err != nil {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: %w", err)
	}

	info, err := fs.Stat(cleanPath)
	if err != nil {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fs.ReadFile(cleanPath)
	if err != nil {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: failed to read config file: %w", err)
	}

	var cfg snake.AppConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: failed to parse config TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return snake.AppConfig{}, fmt.Errorf("tomlconfig: invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save serializes cfg to path as TOML. The write is not validated
// against the .toml extension: callers constructing a fresh path (e.g.
// a "save as" flow) are free to choose their own name.
func Save(path string, cfg snake.AppConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tomlconfig: failed to marshal config: %w", err)
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tomlconfig: failed to write config file: %w", err)
	}
	return nil
}

// Marshal serializes cfg to TOML bytes directly, for round-trip tests
// that should not touch the filesystem.
func Marshal(cfg snake.AppConfig) ([]byte, error) {
	return toml.Marshal(cfg)
}

// Unmarshal parses TOML bytes into an AppConfig without validation, for
// round-trip tests that want to compare raw field equality before
// Validate() has a chance to reject an intentionally-invalid fixture.
func Unmarshal(data []byte) (snake.AppConfig, error) {
	var cfg snake.AppConfig
	err := toml.Unmarshal(data, &cfg)
	return cfg, err
}

package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates the config file at configPath.
// If a .checksums manifest sits next to the file, the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	if err := VerifyChecksum(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = absPath
	resolveRelativePaths(cfg, filepath.Dir(absPath))

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults after ${VAR} interpolation.
// It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	interpolated := interpolateEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(interpolated))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	cfg.Service.LogFile = expandHome(cfg.Service.LogFile)
	cfg.Service.LockPath = expandHome(cfg.Service.LockPath)
	cfg.State.Path = expandHome(cfg.State.Path)
	cfg.Worker.Binary = expandHome(cfg.Worker.Binary)
	cfg.Worker.WorkDir = expandHome(cfg.Worker.WorkDir)
	return cfg, nil
}

// interpolateEnv replaces ${VAR} references with environment values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// resolveRelativePaths anchors relative worker paths at the config directory.
func resolveRelativePaths(cfg *Config, baseDir string) {
	if cfg.Worker.Binary != "" && !filepath.IsAbs(cfg.Worker.Binary) && strings.ContainsRune(cfg.Worker.Binary, filepath.Separator) {
		cfg.Worker.Binary = filepath.Join(baseDir, cfg.Worker.Binary)
	}
	if cfg.Worker.WorkDir != "" && !filepath.IsAbs(cfg.Worker.WorkDir) {
		cfg.Worker.WorkDir = filepath.Join(baseDir, cfg.Worker.WorkDir)
	}
}

// Validate performs basic validation on the configuration.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	switch cfg.Deployment.Mode {
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("deployment.mode must be %q or %q (got %q)", ModeLocal, ModeRemote, cfg.Deployment.Mode)
	}

	if cfg.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	u, err := url.Parse(cfg.Endpoint.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint.url must be an http(s) URL (got %q)", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.Path != "" && !strings.HasPrefix(cfg.Endpoint.Path, "/") {
		return fmt.Errorf("endpoint.path must start with / (got %q)", cfg.Endpoint.Path)
	}
	if cfg.Endpoint.Timeout <= 0 {
		return fmt.Errorf("endpoint.timeout must be positive")
	}
	if matches := envVarPattern.FindStringSubmatch(cfg.Endpoint.Credential); len(matches) > 1 {
		return fmt.Errorf("endpoint.credential: environment variable ${%s} is not set", matches[1])
	}

	if cfg.IsLocal() && cfg.Worker.Binary == "" {
		return fmt.Errorf("worker.binary is required in local mode")
	}
	if cfg.Worker.GracePeriod <= 0 {
		return fmt.Errorf("worker.grace_period must be positive")
	}
	if cfg.Worker.SettleDelay < 0 {
		return fmt.Errorf("worker.settle_delay must not be negative")
	}
	if cfg.Worker.StatusVerb == "" || strings.ContainsAny(cfg.Worker.StatusVerb, " \t") {
		return fmt.Errorf("worker.status_verb must be a single word (got %q)", cfg.Worker.StatusVerb)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	return nil
}

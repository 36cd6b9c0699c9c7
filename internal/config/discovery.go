package config

import (
	"errors"
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that overrides discovery.
const EnvConfigPath = "FARMCTL_CONFIG"

// ErrNoConfig is returned when no candidate config file exists.
var ErrNoConfig = errors.New("no config file found (tried --config, $" + EnvConfigPath + ", ~/.config/farmctl/config.yaml, ./config.yaml)")

// Discover resolves the config file to load. An explicit path always wins,
// even if it does not exist, so Load can report it.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	for _, candidate := range candidatePaths() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", ErrNoConfig
}

func candidatePaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "farmctl", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "farmctl", "config.yaml"))
	}
	return append(paths, "config.yaml")
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "farmctl")
	}
	return filepath.Join(os.TempDir(), "farmctl")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

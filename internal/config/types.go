package config

import "time"

// Mode says where the worker runs relative to the controller.
type Mode string

const (
	// ModeLocal: the controller owns the worker process and sees its output.
	ModeLocal Mode = "local"
	// ModeRemote: the worker is a pre-existing instance reached over the network.
	ModeRemote Mode = "remote"
)

// Config represents the complete farmctl configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Deployment DeploymentConfig `yaml:"deployment"`
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Worker     WorkerConfig     `yaml:"worker"`
	State      StateConfig      `yaml:"state"`

	// Path is the absolute path the config was loaded from.
	Path string `yaml:"-"`
}

// ServiceConfig defines controller-wide settings.
type ServiceConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	LockPath string `yaml:"lock_path"`
}

// DeploymentConfig selects local or remote operation.
type DeploymentConfig struct {
	Mode Mode `yaml:"mode"`
}

// EndpointConfig defines the worker's control endpoint.
type EndpointConfig struct {
	URL        string        `yaml:"url"`
	Path       string        `yaml:"path"`
	Credential string        `yaml:"credential"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WorkerConfig defines how a local worker is launched and supervised.
type WorkerConfig struct {
	Binary      string        `yaml:"binary"`
	Args        []string      `yaml:"args,omitempty"`
	WorkDir     string        `yaml:"work_dir,omitempty"`
	Env         []string      `yaml:"env,omitempty"`
	GracePeriod time.Duration `yaml:"grace_period"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	StatusVerb  string        `yaml:"status_verb"`
}

// StateConfig defines where the worker run ledger lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// IsLocal reports whether the controller supervises the worker itself.
func (c *Config) IsLocal() bool {
	return c.Deployment.Mode == ModeLocal
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	stateDir := defaultStateDir()
	return &Config{
		Service: ServiceConfig{
			LogLevel: "info",
			LogFile:  stateDir + "/farmctl.log",
			LockPath: stateDir + "/farmctl.lock",
		},
		Deployment: DeploymentConfig{
			Mode: ModeLocal,
		},
		Endpoint: EndpointConfig{
			URL:     "http://127.0.0.1:1242",
			Path:    "/IPC",
			Timeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			GracePeriod: 5 * time.Second,
			SettleDelay: 1500 * time.Millisecond,
			StatusVerb:  "statusall",
		},
		State: StateConfig{
			Path: stateDir + "/state.db",
		},
	}
}

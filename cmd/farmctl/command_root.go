package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/transport"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "farmctl",
		Short:         "Terminal controller for a bot-farm worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default: $"+config.EnvConfigPath+", ~/.config/farmctl/config.yaml, ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override service.log_level")

	root.AddCommand(newUICmd(opts))
	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newBotsCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig discovers and loads the config, applying flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path, err := config.Discover(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Service.LogLevel = o.logLevel
	}
	return cfg, nil
}

// setupLogging sends logs to w, or to service.log_file when toFile is set
// (the TUI owns the terminal). The returned closer releases the file.
func setupLogging(cfg *config.Config, w io.Writer, toFile bool) (func(), error) {
	if !toFile {
		log.Setup(cfg.Service.LogLevel, w)
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Service.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Service.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Setup(cfg.Service.LogLevel, f)
	return func() { _ = f.Close() }, nil
}

func newClient(cfg *config.Config) (*transport.HTTPClient, error) {
	return transport.NewHTTPClient(transport.Config{
		URL:        cfg.Endpoint.URL,
		Path:       cfg.Endpoint.Path,
		Credential: cfg.Endpoint.Credential,
		Timeout:    cfg.Endpoint.Timeout,
	})
}

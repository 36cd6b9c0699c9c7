package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/farmctl/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration integrity and inspection",
	}
	cmd.AddCommand(newConfigLockCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	return cmd
}

func newConfigLockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Record the config file's BLAKE3 hash in .checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Discover(opts.configPath)
			if err != nil {
				return err
			}
			sumPath, hash, err := config.Lock(path)
			if err != nil {
				return fmt.Errorf("lock config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked %s\n  %s -> %s\n", path, hash, sumPath)
			return nil
		},
	}
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.Endpoint.Credential != "" {
				shown.Endpoint.Credential = redact(shown.Endpoint.Credential)
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfg.Path, data)
			return nil
		},
	}
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-2)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/roster"
)

func newBotsCmd(opts *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "bots",
		Short: "List the bots the worker reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			ids, reply, err := roster.Fetch(cmd.Context(), client, cfg.Worker.StatusVerb)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprintln(out, reply)
				return nil
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "no bots reported")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the worker's status reply unparsed")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/doctor"
	"github.com/mattjoyce/farmctl/internal/roster"
)

var errCheckFailed = errors.New("configuration check failed")

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOut bool
		probe   bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Discover(opts.configPath)
			if err != nil {
				return err
			}
			// Load validates; a broken file is reported rather than returned.
			cfg, loadErr := config.Load(path)
			result := &doctor.Result{Valid: true}
			if loadErr != nil {
				result.Valid = false
				result.Errors = append(result.Errors, doctor.Issue{Category: "config", Message: loadErr.Error()})
			} else {
				result = doctor.New(cfg).Validate(cmd.Context())
				if probe && result.Valid {
					probeEndpoint(cmd, cfg, result)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				s, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
			} else {
				fmt.Fprint(out, doctor.FormatHuman(result))
			}
			if !result.Valid {
				return errCheckFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&probe, "probe", false, "Also query the endpoint for its bot roster")
	return cmd
}

// probeEndpoint asks the worker for its roster. Failure is a warning since
// a local worker is normally not running yet.
func probeEndpoint(cmd *cobra.Command, cfg *config.Config, result *doctor.Result) {
	client, err := newClient(cfg)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, doctor.Issue{Category: "endpoint", Field: "endpoint.url", Message: err.Error()})
		return
	}
	ids, _, err := roster.Fetch(cmd.Context(), client, cfg.Worker.StatusVerb)
	if err != nil {
		result.Warnings = append(result.Warnings, doctor.Issue{Category: "endpoint", Field: "endpoint.url", Message: err.Error()})
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "endpoint reachable, %d bot(s) reported\n", len(ids))
}

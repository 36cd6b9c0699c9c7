package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/command"
	"github.com/mattjoyce/farmctl/internal/dispatch"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <verb> [bot] [payload...]",
		Short: "Send one command to the worker and print the reply",
		Long: "Send one command to the worker and print the reply.\n\n" +
			"Each payload argument becomes one payload item (for example a key to redeem).\n" +
			"Verbs not in the built-in list are passed through unchanged.",
		Args: cobra.MinimumNArgs(1),
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

			line, err := buildCommand(args)
			if err != nil {
				return err
			}
			if timeout > 0 {
				cfg.Endpoint.Timeout = timeout
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			res := sendOnce(cmd.Context(), dispatch.New(client, cfg.Deployment.Mode), line)
			if res.Err != nil {
				return fmt.Errorf("%s: %w", res.Command.Label(), res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override endpoint.timeout for this request")
	return cmd
}

// buildCommand turns CLI arguments into a command, checking known verbs
// against their scope.
func buildCommand(args []string) (command.Command, error) {
	verb := args[0]
	var bot string
	if len(args) > 1 {
		bot = args[1]
	}
	var payload []string
	if len(args) > 2 {
		payload = args[2:]
	}

	v, ok := command.Lookup(verb)
	if !ok {
		return command.New(verb, bot, payload)
	}
	if v.Scope == command.ScopeGlobal && bot != "" {
		return command.Command{}, fmt.Errorf("%s takes no bot", verb)
	}
	if v.Scope == command.ScopeBot && len(payload) > 0 {
		return command.Command{}, fmt.Errorf("%s takes no payload", verb)
	}
	cmd, err := v.Build(bot, payload)
	if errors.Is(err, command.ErrBotRequired) {
		return command.Command{}, fmt.Errorf("%s requires a bot", verb)
	}
	return cmd, err
}

// sendOnce runs a single command through the dispatcher and waits for it.
func sendOnce(ctx context.Context, d *dispatch.Dispatcher, cmd command.Command) dispatch.Result {
	results := make(chan dispatch.Result, 1)
	d.Dispatch(ctx, cmd, func(r dispatch.Result) { results <- r })
	return <-results
}

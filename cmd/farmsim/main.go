// Command farmsim runs a simulated bot-farm worker for trying out farmctl.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/simworker"
)

// exitCrashed is the status used by --crash-after.
const exitCrashed = 3

type options struct {
	listen     string
	path       string
	credential string
	bots       []string
	slowDelay  time.Duration
	crashAfter time.Duration
	logLevel   string
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "farmsim",
		Short:         "Simulated bot-farm worker with an HTTP IPC endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.credential == "" {
				opts.credential = os.Getenv("FARMSIM_CREDENTIAL")
			}
			log.Setup(opts.logLevel, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if opts.crashAfter > 0 {
				go crashAfter(ctx, opts.crashAfter, cmd.ErrOrStderr())
			}
			return run(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", "127.0.0.1:1242", "Address to serve IPC on")
	cmd.Flags().StringVar(&opts.path, "path", "/IPC", "IPC request path")
	cmd.Flags().StringVar(&opts.credential, "credential", "", "Required Authentication header value (default $FARMSIM_CREDENTIAL)")
	cmd.Flags().StringSliceVar(&opts.bots, "bots", []string{"alice", "bob"}, "Bot names to simulate")
	cmd.Flags().DurationVar(&opts.slowDelay, "slow-delay", 3*time.Second, "Time taken by 2FA confirmations")
	cmd.Flags().DurationVar(&opts.crashAfter, "crash-after", 0, "Exit with status 3 after this long")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level")
	return cmd
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	farm := simworker.NewFarm(opts.bots...)
	farm.SlowDelay = opts.slowDelay

	fmt.Fprintf(stdout, "farmsim V%s starting\n", farm.Version)
	for _, line := range farm.StatusLines() {
		fmt.Fprintln(stdout, line)
	}

	server := simworker.NewServer(simworker.Config{
		Listen:     opts.listen,
		Path:       opts.path,
		Credential: opts.credential,
	}, farm, log.WithComponent("ipc"))
	return server.Start(ctx)
}

func crashAfter(ctx context.Context, d time.Duration, stderr io.Writer) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
		fmt.Fprintln(stderr, "fatal: simulated crash")
		os.Exit(exitCrashed)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mailagent/internal/app"
	appsync "github.com/nhle/mailagent/internal/sync"
)

var (
	watchInterval   time.Duration
	watchRunTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "time between runs")
	watchCmd.Flags().DurationVar(&watchRunTimeout, "run-timeout", 2*time.Minute, "maximum duration of one run")
}

var watchCmd = &cobra.Command{
	Use:   "watch <task>",
	Short: "Run a task repeatedly on an interval",
	Long: `Run the same task every interval until interrupted. Send SIGHUP to
trigger an immediate run. Stops when the mailbox credentials expire.

Examples:
  mailagent watch --interval 10m "Read my last 10 emails and categorize them"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	task, err := readTask(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	p := appsync.New(a.Agent, task,
		appsync.WithInterval(watchInterval),
		appsync.WithRunTimeout(watchRunTimeout),
		appsync.WithLogger(logger.Named("watch")),
	)

	go forwardHangups(ctx, p)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-p.Results():
				printWatchResult(cmd, r)
			}
		}
	}()

	return p.Run(ctx)
}

func forwardHangups(ctx context.Context, p *appsync.Poller) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			p.Trigger()
		}
	}
}

func printWatchResult(cmd *cobra.Command, r appsync.Result) {
	w := cmd.OutOrStdout()
	when := r.At.Format("15:04:05")
	if r.Error != nil {
		fmt.Fprintf(w, "%s  error: %v\n", when, r.Error)
		return
	}
	fmt.Fprintf(w, "%s  %s (%d steps, %d failed)\n",
		when, r.TaskResult.Status, len(r.TaskResult.Results), len(r.TaskResult.Failures()))
}

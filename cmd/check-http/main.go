// Command check-http checks one URL, or every target of a YAML file, and
// prints the result in monitoring plugin format. The exit code is the worst
// state: 0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/config"
	"github.com/kylerisse/checkhttp/pkg/logging"
	"github.com/kylerisse/checkhttp/pkg/runner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var code int
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stdout, "HTTP UNKNOWN - %v\n", err)
		return check.StateUnknown.ExitCode()
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "check-http",
		Short: "Check an HTTP(S) endpoint",
		Long: `check-http sends one request and classifies the response.

Examples:
  check-http -u https://example.com --response-time-warn 1s --response-time-crit 3s
  check-http -u https://example.com/api -H "Accept: application/json" -s '"status":"ok"'
  check-http --config targets.yaml`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := run(cmd.Context(), f, cmd.OutOrStdout())
			*code = c
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func run(ctx context.Context, f *flags, stdout io.Writer) (int, error) {
	file, err := f.file()
	if err != nil {
		return 0, err
	}

	logger, err := logging.New(file.Logging())
	if err != nil {
		return 0, err
	}

	checks, err := file.Checks(config.DefaultRegistry(), logger)
	if err != nil {
		return 0, err
	}

	r, err := runner.New(append(file.RunnerOptions(), runner.WithLogger(logger))...)
	if err != nil {
		return 0, err
	}

	results := r.Run(ctx, checks)
	if err := printResults(stdout, results, f.configPath == ""); err != nil {
		return 0, err
	}

	state := runner.Worst(results)
	logger.WithFields(logrus.Fields{"checks": len(results), "state": state}).Info("Run complete")
	return state.ExitCode(), nil
}

// printResults prints a single check under the name HTTP with its long
// output, and several checks one line each.
func printResults(w io.Writer, results []runner.Result, single bool) error {
	if single && len(results) == 1 {
		out := results[0].Output()
		out.Name = "HTTP"
		_, err := out.WriteTo(w)
		return err
	}
	for _, res := range results {
		if _, err := fmt.Fprintln(w, res.Output().Line()); err != nil {
			return err
		}
	}
	return nil
}

var errNoTarget = errors.New("either --url or --config is required")

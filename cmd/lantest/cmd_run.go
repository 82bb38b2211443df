package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/lantest-net/lantest/pkg/runner"
	"github.com/lantest-net/lantest/pkg/testbed"
)

func newRunCmd() *cobra.Command {
	var opts runner.RunOptions
	var dir, testbedPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run test scenarios against a testbed",
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := testbed.Load(testbedPath)
			if err != nil {
				return err
			}
			if err := fillPasswords(tb); err != nil {
				return err
			}

			opts.Verbose = opts.Verbose || verboseFlag
			r := runner.NewRunner(dir, tb)
			r.Progress = runner.NewConsoleProgress(opts.Verbose)

			results, err := r.Run(context.Background(), opts)
			if err != nil {
				// Anything before the first scenario is an environment
				// problem, not a test verdict.
				var infraErr *runner.InfraError
				if errors.As(err, &infraErr) {
					cmd.PrintErrln(infraErr)
					os.Exit(2)
				}
				return err
			}

			// Exit 2 = infra error, Exit 1 = test failure
			hasFailure, hasInfraError := false, false
			for _, res := range results {
				switch res.Status {
				case runner.StepStatusError:
					hasInfraError = true
				case runner.StepStatusFailed:
					hasFailure = true
				}
			}
			if hasInfraError {
				os.Exit(2)
			}
			if hasFailure {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "scenarios", "directory containing scenario YAML files")
	cmd.Flags().StringVar(&testbedPath, "testbed", "testbed.yaml", "testbed descriptor YAML")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "run specific scenario")
	cmd.Flags().BoolVar(&opts.All, "all", false, "run all scenarios in dir")
	cmd.Flags().StringVar(&opts.LogDir, "log-dir", "logs", "base directory for per-run logs")
	cmd.Flags().StringVar(&opts.JUnitPath, "junit", "", "JUnit XML output path")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "verbose output")

	return cmd
}

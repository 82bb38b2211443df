package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lantest-net/lantest/pkg/version"
)

var verboseFlag bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "lantest",
		Short: "Functional VLAN testing for SONiC switches",
		Long: `Lantest runs VLAN and reachability scenarios against switches over SSH.

Scenarios are YAML files that define steps (configure, verify, cleanup).

  lantest list                                # show available scenarios
  lantest run --all --testbed testbed.yaml    # run every scenario
  lantest run --scenario vlan-access \
      --testbed testbed.yaml                  # run one scenario`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				if version.Version == "dev" {
					fmt.Println("lantest dev build (use 'make build' for version info)")
				} else {
					fmt.Printf("lantest %s (%s)\n", version.Version, version.GitCommit)
				}
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

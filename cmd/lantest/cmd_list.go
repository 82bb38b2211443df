package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lantest-net/lantest/pkg/cli"
	"github.com/lantest-net/lantest/pkg/runner"
)

func newListCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := runner.ParseAllScenarios(dir)
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				fmt.Printf("No scenarios found in %s/\n", dir)
				return nil
			}

			table := cli.NewTable("NAME", "STEPS", "DESCRIPTION")
			for _, s := range scenarios {
				table.Row(s.Name, strconv.Itoa(len(s.Steps)), s.Description)
			}
			table.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "scenarios", "directory containing scenario YAML files")

	return cmd
}

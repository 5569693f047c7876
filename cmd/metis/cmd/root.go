package cmd

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metis",
		Short: "Train and evaluate reinforcement-learned task placement on a simulated cluster.",
	}
	cmd.AddCommand(trainCmd())
	cmd.AddCommand(evaluateCmd())
	cmd.AddCommand(simulateCmd())
	return cmd
}

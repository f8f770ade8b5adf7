package commands

import (
	"github.com/spf13/cobra"

	"go.trai.ch/rig/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stepTimeout, _ := cmd.Flags().GetDuration("step-timeout")
			report, _ := cmd.Flags().GetString("report")
			trace, _ := cmd.Flags().GetString("trace")

			return c.app.Run(cmd.Context(), app.RunOptions{
				JobFile:     jobFileFlag(cmd),
				StepTimeout: stepTimeout,
				ReportPath:  report,
				TracePath:   trace,
			})
		},
	}
	cmd.Flags().Duration("step-timeout", 0, "Timeout for run steps that do not declare one (0 disables)")
	cmd.Flags().String("report", "", "Write a JSON report of the result to this file")
	cmd.Flags().String("trace", "", "Write finished trace spans as JSON lines to this file")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the job file and print its steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Validate(cmd.Context(), jobFileFlag(cmd))
		},
	}
}

package roofctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewJobCommand creates the job command.
func NewJobCommand(rootOpts *RootOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show a batch job and its per-item estimates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := rootOpts.client()
			j, err := client.Job(cmd.Context(), args[0])
			if err == nil && wait {
				j, err = client.WaitJob(cmd.Context(), args[0], jobPollInterval)
			}
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), j)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s %s: %d/%d completed, %d failed\n",
				j.ID, j.Status, j.Completed, len(j.Items), j.Failed)
			results, stats := jobStats(j)
			return report(cmd.OutOrStdout(), rootOpts.Format, results, stats)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the job to finish")
	return cmd
}

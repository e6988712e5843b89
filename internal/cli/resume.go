package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/catchup/internal/config"
	"github.com/roach88/catchup/internal/sapi"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	JobPath  string
	MaxPages int

	// NewClient allows overriding provider-client construction (for
	// testing).
	NewClient func() (sapi.Client, error)
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume an interrupted run from its committed cursor",
		Long: `Resume a run from the last page it durably committed.

The job file supplies the query parameters; its scope must match the
scope the run was created under, otherwise the resume is refused.

Example:
  catchup resume 0195f3c0-... --job jobs/de-movies.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resumeRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.JobPath, "job", "", "job file the run was started from (required)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "override the job's page budget for this invocation")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func resumeRun(opts *ResumeOptions, runID string, cmd *cobra.Command) error {
	job, err := config.LoadJob(opts.JobPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load job", err)
	}

	maxPages := job.MaxPages
	if cmd.Flags().Changed("max-pages") {
		maxPages = opts.MaxPages
	}

	return executeBackfill(opts.RootOptions, opts.NewClient, job, runID, maxPages, cmd)
}

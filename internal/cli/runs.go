package cli

import (
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List all runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(rootOpts, cmd)
		},
	}
	return cmd
}

func listRuns(opts *RootOptions, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "list runs", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return formatter.Success(newRunListView(runs))
}

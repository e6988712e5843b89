package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/catchup/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show one run's ledger row",
		Long: `Show the ledger row for a run: status, committed cursor, page and
item counts, and the last error if the run failed.

Example:
  catchup status 0195f3c0-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func showStatus(opts *RootOptions, runID string, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "unknown run", err)
		}
		return WrapExitError(ExitFailure, "read run", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	return formatter.Success(newRunView(run))
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/catchup/internal/config"
	"github.com/roach88/catchup/internal/ingest"
	"github.com/roach88/catchup/internal/sapi"
	"github.com/roach88/catchup/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RunID    string
	MaxPages int

	// NewClient allows overriding provider-client construction (for
	// testing). If nil, an HTTPClient is built from the environment.
	NewClient func() (sapi.Client, error)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Start or resume a backfill for a job",
		Long: `Start a backfill crawl described by a YAML job file.

A new run is created unless --run-id names an existing one, in which
case the crawl resumes from that run's committed cursor. The job's
scope must match the run being resumed.

Example:
  catchup run jobs/de-movies.yaml
  catchup run jobs/de-movies.yaml --run-id 0195f3c0-... --max-pages 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "resume this run instead of starting a new one")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "override the job's page budget for this invocation")

	return cmd
}

func runBackfill(opts *RunOptions, jobPath string, cmd *cobra.Command) error {
	job, err := config.LoadJob(jobPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load job", err)
	}

	maxPages := job.MaxPages
	if cmd.Flags().Changed("max-pages") {
		maxPages = opts.MaxPages
	}

	return executeBackfill(opts.RootOptions, opts.NewClient, job, opts.RunID, maxPages, cmd)
}

// executeBackfill is the shared driver behind run and resume.
func executeBackfill(rootOpts *RootOptions, newClient func() (sapi.Client, error), job config.Job, runID string, maxPages int, cmd *cobra.Command) error {
	client, err := buildClient(newClient)
	if err != nil {
		return err
	}

	st, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer st.Close()

	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	worker := ingest.NewWorker(st, client)
	run, err := worker.RunBackfill(cmd.Context(), job.Scope(), job.Params, runID, ingest.Options{MaxPages: maxPages})
	if err != nil {
		return backfillError(formatter, err)
	}

	return formatter.Success(newRunView(run))
}

func buildClient(newClient func() (sapi.Client, error)) (sapi.Client, error) {
	if newClient != nil {
		return newClient()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	client, err := sapi.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.APIHost)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build provider client", err)
	}
	return client, nil
}

// backfillError maps a worker failure onto an exit code, emitting the
// structured form first when JSON output was requested.
func backfillError(formatter *OutputFormatter, err error) error {
	code := ExitFailure
	taxonomy := "ERROR"

	var ie *ingest.IngestError
	switch {
	case errors.As(err, &ie):
		taxonomy = string(ie.Code)
		if ingest.IsRetryable(err) {
			code = ExitRetryable
		}
	case errors.Is(err, store.ErrRunNotFound), errors.Is(err, store.ErrScopeMismatch):
		code = ExitCommandError
	}

	if formatter.Format == "json" {
		var details interface{}
		if ie != nil {
			details = map[string]string{"run_id": ie.RunID, "cursor": ie.Cursor}
		}
		_ = formatter.Error(taxonomy, err.Error(), details)
	}

	return WrapExitError(code, fmt.Sprintf("backfill failed (%s)", taxonomy), err)
}

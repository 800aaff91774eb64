package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute the action log and verify it",
		Long: `Re-execute every recorded action in seq order against empty tables
and check that IDs, outcomes, codes and the final tables match what the
database holds. Nothing is written.

Exit codes:
  0 - The log replays exactly
  1 - Replay diverged from the log
  2 - Command error (database not found, etc.)

Examples:
  ubi replay --db ./ubi.db
  ubi replay --db ./ubi.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	c, account, err := opts.contract()
	if err != nil {
		return err
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := engine.Replay(ctx, st, c, account)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay", err)
	}
	opts.logger().Debug("replay finished",
		"actions", report.Actions,
		"rejected", report.Rejected,
		"divergences", len(report.Divergences),
	)

	out := opts.formatter(cmd)
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.OK() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    string(engine.ErrCodeReplayDiverged),
				Message: report.Err().Error(),
			}
		}
		if err := out.Respond(resp); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd.OutOrStdout(), report, opts.Verbose)
	}

	if !report.OK() {
		return WrapExitError(ExitFailure, "replay diverged", report.Err())
	}
	return nil
}

func writeReplayText(w io.Writer, r engine.ReplayReport, verbose bool) {
	fmt.Fprintf(w, "Replayed %d action(s), %d rejected\n", r.Actions, r.Rejected)
	if verbose || !r.OK() {
		fmt.Fprintf(w, "  state hash:  %s\n", r.StateHash)
		fmt.Fprintf(w, "  stored hash: %s\n", r.StoredHash)
	}
	if r.OK() {
		fmt.Fprintln(w, "✓ log replays exactly")
		return
	}
	fmt.Fprintf(w, "✗ %d divergence(s)\n", len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "  seq %d %s: %s stored %q, replayed %q\n", d.Seq, d.Action, d.Field, d.Stored, d.Replayed)
	}
}

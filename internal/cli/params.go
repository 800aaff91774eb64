package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/params"
)

// ParamsOptions holds flags for the params command.
type ParamsOptions struct {
	*RootOptions
	Schema bool
}

// NewParamsCommand creates the params command.
func NewParamsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParamsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "params [file]",
		Short: "Check a params file and print the effective values",
		Long: `Unify a CUE params file with the schema and print the resulting
values. Without a file, prints the values of --params or the defaults.

Examples:
  ubi params
  ubi params ./testnet.cue --format json
  ubi params --schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParams(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Schema, "schema", false, "print the CUE schema instead")

	return cmd
}

func runParams(opts *ParamsOptions, args []string, cmd *cobra.Command) error {
	if opts.Schema {
		fmt.Fprint(cmd.OutOrStdout(), params.Schema())
		return nil
	}

	path := opts.Params
	if len(args) == 1 {
		path = args[0]
	}

	doc := params.Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read params", err)
		}
		if doc, err = params.Decode(path, src); err != nil {
			_ = opts.formatter(cmd).Error("INVALID_PARAMS", err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid params", err)
		}
	}
	if _, err := doc.Params(); err != nil {
		_ = opts.formatter(cmd).Error("INVALID_PARAMS", err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid params", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(doc)
	}
	writeParamsText(cmd.OutOrStdout(), doc)
	return nil
}

func writeParamsText(w io.Writer, d params.Document) {
	fmt.Fprintf(w, "symbol:      %s (precision %d)\n", d.Symbol, d.Precision)
	fmt.Fprintf(w, "initial:     %s\n", d.Initial)
	fmt.Fprintf(w, "delta:       %s\n", d.Delta)
	fmt.Fprintf(w, "royalty_pct: %d\n", d.RoyaltyPct)
	fmt.Fprintf(w, "issue_wait:  %s\n", d.IssueWait)
	fmt.Fprintf(w, "grace:       %s\n", d.Grace)
	fmt.Fprintf(w, "edge_cap:    %d\n", d.EdgeCap)
	fmt.Fprintf(w, "memo_max:    %d\n", d.MemoMax)
}

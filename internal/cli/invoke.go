package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/engine"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args   string
	Caller string
	At     string
	Flow   string
}

// InvokeResult is the JSON form of one executed action.
type InvokeResult struct {
	InvocationID string   `json:"invocation_id"`
	FlowToken    string   `json:"flow_token"`
	Action       string   `json:"action"`
	Seq          int64    `json:"seq"`
	Outcome      string   `json:"outcome"`
	Code         string   `json:"code,omitempty"`
	Message      string   `json:"message,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
}

func (r InvokeResult) String() string {
	if r.Outcome == string(ir.OutcomeOK) {
		return fmt.Sprintf("%s ok (seq %d, flow %s)", r.Action, r.Seq, r.FlowToken)
	}
	return fmt.Sprintf("%s rejected: %s: %s (seq %d, flow %s)", r.Action, r.Code, r.Message, r.Seq, r.FlowToken)
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <action>",
		Short: "Execute one ledger action",
		Long: `Execute one ledger action against the database and record it.

Every argument is a string. Names are lower-case accounts, quantities use
the "99.0000 UBI" form. The caller is the account whose authority the
action carries.

Exit codes:
  0 - Action committed
  1 - Action rejected by the ledger (recorded)
  2 - Unknown action, bad arguments or database error (nothing recorded)

Examples:
  ubi invoke launch --caller ubi --args '{"genesis":"genesis"}'
  ubi invoke apply --caller alice --args '{"issuer":"alice","referral":"genesis"}'
  ubi invoke transfer --caller alice --args '{"from":"alice","to":"bob","token_issuer":"alice","quantity":"5.0000 UBI","memo":"rent"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action arguments as a JSON object of strings")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "account authorizing the action (required)")
	_ = cmd.MarkFlagRequired("caller")
	cmd.Flags().StringVar(&opts.At, "at", "", "block time as RFC 3339 (default now)")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow token to join (default a new flow)")

	return cmd
}

func runInvoke(opts *InvokeOptions, action string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := opts.formatter(cmd)

	args, err := ir.ParseObject([]byte(opts.Args))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}

	at := time.Now()
	if opts.At != "" {
		if at, err = time.Parse(time.RFC3339Nano, opts.At); err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	}

	st, eng, err := opts.openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := eng.Execute(ctx, engine.Request{
		Action:    action,
		Args:      args,
		Caller:    opts.Caller,
		Time:      ledger.FromTime(at),
		FlowToken: opts.Flow,
	})
	if err != nil {
		var rt *engine.RuntimeError
		if errors.As(err, &rt) {
			_ = out.Error(string(rt.Code), rt.Message, rt.Details)
			return WrapExitError(ExitCommandError, "action refused", rt)
		}
		return WrapExitError(ExitCommandError, "failed to execute action", err)
	}

	result := invokeResult(res)
	out.VerboseLog("invocation %s at %d", result.InvocationID, res.Invocation.Time)
	if err := out.Success(result); err != nil {
		return err
	}
	if !res.Completion.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s rejected: %s", action, res.Completion.Code))
	}
	return nil
}

func invokeResult(res engine.Result) InvokeResult {
	r := InvokeResult{
		InvocationID: res.Invocation.ID,
		FlowToken:    res.Invocation.FlowToken,
		Action:       res.Invocation.Action,
		Seq:          res.Invocation.Seq,
		Outcome:      string(res.Completion.Outcome),
		Code:         res.Completion.Code,
		Message:      res.Completion.Message,
	}
	for _, n := range res.Recipients {
		r.Recipients = append(r.Recipients, string(n))
	}
	return r
}

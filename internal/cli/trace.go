package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	FlowToken string
	Action    string // optional - filter to specific action
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq     int64             `json:"seq"`
	Type    string            `json:"type"` // "invocation" or "completion"
	ID      string            `json:"id"`
	Action  string            `json:"action,omitempty"`
	Caller  string            `json:"caller,omitempty"`
	Time    int64             `json:"time,omitempty"`
	Args    map[string]string `json:"args,omitempty"`
	Outcome string            `json:"outcome,omitempty"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
}

// TraceResult holds the complete trace output for one flow.
type TraceResult struct {
	FlowToken string       `json:"flow_token"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Invocations int `json:"invocations"`
	Rejected    int `json:"rejected"`
}

// FlowListing is the JSON form of store.FlowSummary.
type FlowListing struct {
	FlowToken   string `json:"flow_token"`
	Actions     int    `json:"actions"`
	Rejected    int    `json:"rejected"`
	FirstSeq    int64  `json:"first_seq"`
	LastSeq     int64  `json:"last_seq"`
	LastOutcome string `json:"last_outcome"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded actions of a flow",
		Long: `Show the action log grouped by flow token.

Without --flow, lists every flow with its action count and last outcome.
With --flow, prints the flow's invocations and completions in seq order.

Examples:
  ubi trace --db ./ubi.db
  ubi trace --db ./ubi.db --flow flow-0003
  ubi trace --db ./ubi.db --flow flow-0003 --action transfer --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.FlowToken == "" {
		flows, err := st.SummarizeFlows(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list flows", err)
		}
		listing := flowListings(flows)
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(listing)
		}
		writeFlowListing(cmd.OutOrStdout(), listing)
		return nil
	}

	invs, comps, err := st.ReadFlow(ctx, opts.FlowToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read flow", err)
	}

	timeline := buildTimeline(invs, comps, opts.Action)
	result := TraceResult{
		FlowToken: opts.FlowToken,
		Timeline:  timeline,
	}
	for _, e := range timeline {
		switch {
		case e.Type == "invocation":
			result.Stats.Invocations++
		case e.Outcome == string(ir.OutcomeRejected):
			result.Stats.Rejected++
		}
	}
	result.Stats.TotalEvents = len(timeline)

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	writeTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTimeline merges a flow's invocations and completions in seq order.
// When actionFilter is set, only matching invocations and their
// completions are kept.
func buildTimeline(invs []ir.Invocation, comps []ir.Completion, actionFilter string) []TraceEvent {
	kept := make(map[string]bool, len(invs))
	timeline := make([]TraceEvent, 0, len(invs)+len(comps))

	for _, inv := range invs {
		if actionFilter != "" && inv.Action != actionFilter {
			continue
		}
		kept[inv.ID] = true
		timeline = append(timeline, TraceEvent{
			Seq:    inv.Seq,
			Type:   "invocation",
			ID:     inv.ID,
			Action: inv.Action,
			Caller: inv.Caller,
			Time:   inv.Time,
			Args:   stringArgs(inv.Args),
		})
	}
	for _, comp := range comps {
		if !kept[comp.InvocationID] {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:     comp.Seq,
			Type:    "completion",
			ID:      comp.ID,
			Outcome: string(comp.Outcome),
			Code:    comp.Code,
			Message: comp.Message,
		})
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Seq < timeline[j].Seq })
	return timeline
}

// stringArgs flattens action args; every ledger arg is a string.
func stringArgs(obj ir.IRObject) map[string]string {
	if len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k := range obj {
		if s, ok := obj.String(k); ok {
			out[k] = s
			continue
		}
		data, _ := ir.MarshalIRValue(obj[k])
		out[k] = string(data)
	}
	return out
}

func flowListings(flows []store.FlowSummary) []FlowListing {
	out := make([]FlowListing, 0, len(flows))
	for _, f := range flows {
		out = append(out, FlowListing{
			FlowToken:   f.FlowToken,
			Actions:     f.Actions,
			Rejected:    f.Rejected,
			FirstSeq:    f.FirstSeq,
			LastSeq:     f.LastSeq,
			LastOutcome: string(f.LastOutcome),
		})
	}
	return out
}

func writeFlowListing(w io.Writer, flows []FlowListing) {
	if len(flows) == 0 {
		fmt.Fprintln(w, "No flows recorded.")
		return
	}
	for _, f := range flows {
		fmt.Fprintf(w, "%s  %d action(s), %d rejected, seq %d-%d, last %s\n",
			f.FlowToken, f.Actions, f.Rejected, f.FirstSeq, f.LastSeq, f.LastOutcome)
	}
}

func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Invocations:  %d\n", result.Stats.Invocations)
	fmt.Fprintf(w, "  Rejected:     %d\n", result.Stats.Rejected)
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case "invocation":
		fmt.Fprintf(w, "  [%d] INV %s by %s at %s\n", event.Seq, event.Action, event.Caller,
			ledger.Timestamp(event.Time).Time().UTC().Format("2006-01-02T15:04:05.000000Z"))
		if verbose && len(event.Args) > 0 {
			fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
		}
	case "completion":
		if event.Code != "" {
			fmt.Fprintf(w, "  [%d] COMP %s %s: %s\n", event.Seq, event.Outcome, event.Code, event.Message)
		} else {
			fmt.Fprintf(w, "  [%d] COMP %s\n", event.Seq, event.Outcome)
		}
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	}
}

// formatArgs formats args for display with sorted keys.
func formatArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + args[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

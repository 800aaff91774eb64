package store

import (
	"context"
	"fmt"

	"github.com/roach88/ubi/internal/ir"
)

// FlowSummary condenses one flow for listings.
type FlowSummary struct {
	FlowToken string
	Actions   int
	Rejected  int
	FirstSeq  int64
	LastSeq   int64

	// LastOutcome is the outcome of the flow's latest action.
	LastOutcome ir.Outcome
}

// SummarizeFlow reads a flow and reduces it to a FlowSummary. An unknown
// flow yields a summary with zero actions.
func (s *Store) SummarizeFlow(ctx context.Context, flowToken string) (FlowSummary, error) {
	sum := FlowSummary{FlowToken: flowToken}

	invs, comps, err := s.ReadFlow(ctx, flowToken)
	if err != nil {
		return sum, fmt.Errorf("summarize flow: %w", err)
	}
	sum.Actions = len(invs)
	if len(invs) > 0 {
		sum.FirstSeq = invs[0].Seq
	}
	for _, c := range comps {
		if !c.OK() {
			sum.Rejected++
		}
		if c.Seq > sum.LastSeq {
			sum.LastSeq = c.Seq
			sum.LastOutcome = c.Outcome
		}
	}
	return sum, nil
}

// SummarizeFlows summarizes every flow in order of first appearance.
func (s *Store) SummarizeFlows(ctx context.Context) ([]FlowSummary, error) {
	tokens, err := s.ListFlowTokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FlowSummary, 0, len(tokens))
	for _, t := range tokens {
		sum, err := s.SummarizeFlow(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

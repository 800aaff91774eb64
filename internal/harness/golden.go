package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ubi/internal/ir"
)

// TraceSnapshot is the golden form of a run. IDs and hashes are left out so
// that the file reads as the story of the scenario.
type TraceSnapshot struct {
	ScenarioName string
	Pass         bool
	Trace        []TraceEvent
}

// IR renders the snapshot for canonical encoding.
func (s TraceSnapshot) IR() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.IRObject{"type": ir.IRString(event.Type)}
		switch event.Type {
		case EventInvocation:
			obj["flow_token"] = ir.IRString(event.FlowToken)
			obj["action"] = ir.IRString(event.Action)
			obj["caller"] = ir.IRString(event.Caller)
			obj["at"] = ir.IRInt(event.At)
			obj["args"] = event.Args
			obj["seq"] = ir.IRInt(event.Seq)
		case EventCompletion:
			obj["outcome"] = ir.IRString(event.Outcome)
			obj["seq"] = ir.IRInt(event.Seq)
			if event.Code != "" {
				obj["code"] = ir.IRString(event.Code)
			}
			if len(event.Recipients) > 0 {
				rs := make(ir.IRArray, len(event.Recipients))
				for j, r := range event.Recipients {
					rs[j] = ir.IRString(r)
				}
				obj["recipients"] = rs
			}
		case EventError:
			obj["action"] = ir.IRString(event.Action)
			obj["caller"] = ir.IRString(event.Caller)
			obj["code"] = ir.IRString(event.Code)
		}
		trace[i] = obj
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"pass":          ir.IRBool(s.Pass),
		"trace":         trace,
	}
}

// Marshal encodes the snapshot as canonical JSON plus a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := ir.MarshalCanonical(s.IR())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with -update.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := TraceSnapshot{
		ScenarioName: name,
		Pass:         result.Pass,
		Trace:        result.Trace,
	}.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

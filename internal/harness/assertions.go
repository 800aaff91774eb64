package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/ubi/internal/engine"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/store"
)

// validIdentifier matches SQL identifiers that may be interpolated into a
// final_state query. Values always go through placeholders.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s by %s %v\n", i+1, event.Action, event.Caller, event.Args)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks for an invocation of the action whose args
// include the expected ones.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			if matchArgs(event.Args, assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrence of each action comes
// in the listed order. Other actions may come in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		for _, expected := range assertion.Actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the action was invoked exactly Count times.
// Requests the engine refused are not invocations.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks one persisted row. Exactly one row may match
// Where, and Expect is a subset of its columns.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertBalance compares a holding with Equals. A missing row counts as
// zero.
func assertBalance(v ledger.View, p ledger.Params, assertion Assertion) error {
	want, err := ledger.ParseQuantity(assertion.Equals)
	if err != nil {
		return err
	}
	got := ledger.BalanceOf(v, ledger.Name(assertion.Owner), ledger.Name(assertion.Issuer), p.Symbol)
	if got != want {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %s of %s", assertion.Owner, want, assertion.Issuer),
			Actual:   got.String(),
		}
	}
	return nil
}

// issuerFields renders the issuer row as the strings an issuer assertion
// compares against.
func issuerFields(is ledger.Issuer) map[string]string {
	last := "blocked"
	if is.LastIssue.Open {
		last = strconv.FormatInt(int64(is.LastIssue.At), 10)
	}
	return map[string]string{
		"state":            is.State.String(),
		"referral":         string(is.Referral),
		"pending_referral": string(is.PendingReferral),
		"supply":           is.Supply.String(),
		"next_issue":       is.NextIssue.String(),
		"last_issue":       last,
		"payer":            string(is.Payer),
	}
}

func assertIssuer(v ledger.View, assertion Assertion) error {
	is, ok := v.Issuer(ledger.Name(assertion.Identity))
	if !ok {
		return &AssertionError{
			Type:     AssertIssuer,
			Expected: fmt.Sprintf("issuer %s", assertion.Identity),
			Actual:   "not registered",
		}
	}
	return compareFields(AssertIssuer, "issuer "+assertion.Identity, issuerFields(is), assertion.Expect)
}

// edgeFields renders an edge for comparison; live is evaluated at now.
func edgeFields(e ledger.Edge, now ledger.Timestamp) map[string]string {
	expiry := "never"
	if e.Expiry.Finite {
		expiry = strconv.FormatInt(int64(e.Expiry.At), 10)
	}
	return map[string]string{
		"exists":    "true",
		"live":      strconv.FormatBool(e.Live(now)),
		"revocable": strconv.FormatBool(e.Revocable),
		"expiry":    expiry,
		"payer":     string(e.Payer),
	}
}

func assertEdge(v ledger.View, now ledger.Timestamp, assertion Assertion) error {
	desc := fmt.Sprintf("edge %s -> %s", assertion.From, assertion.To)
	e, ok := v.Edge(ledger.Name(assertion.From), ledger.Name(assertion.To))
	if !ok {
		return compareFields(AssertEdge, desc, map[string]string{"exists": "false"}, assertion.Expect)
	}
	return compareFields(AssertEdge, desc, edgeFields(e, now), assertion.Expect)
}

// compareFields checks expected against actual in key order. Expected
// values are compared by their printed form, so YAML true and "true" both
// match.
func compareFields(kind, desc string, actual map[string]string, expected map[string]any) error {
	for _, key := range sortedKeys(expected) {
		want := fmt.Sprint(expected[key])
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s field %q = %s", desc, key, want),
				Actual:   fmt.Sprintf("field %q is unknown or absent", key),
			}
		}
		if got != want {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s field %q = %s", desc, key, want),
				Actual:   got,
			}
		}
	}
	return nil
}

func assertReplay(actx *AssertionContext) error {
	report, err := engine.Replay(actx.Ctx, actx.Store, actx.Contract, actx.Account)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "replay reproduces the log and the tables",
			Actual:   report.Err().Error(),
		}
	}
	return nil
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML or IR value to a SQL parameter.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return boolInt(bool(val))
	case bool:
		return boolInt(val)
	case string, int, int64:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// boolInt matches how the store writes booleans.
func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a SQLite column.
// SQLite hands back int64 for integers and booleans, and string or []byte
// for text.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case ir.IRString:
		return stateValuesEqual(string(exp), actual)
	case ir.IRInt:
		return stateValuesEqual(int64(exp), actual)
	case ir.IRBool:
		return stateValuesEqual(bool(exp), actual)
	case string:
		s, ok := actual.(string)
		return ok && s == exp
	case int:
		return stateValuesEqual(int64(exp), actual)
	case int64:
		switch a := actual.(type) {
		case int64:
			return a == exp
		case int:
			return int64(a) == exp
		}
		return false
	case bool:
		switch a := actual.(type) {
		case bool:
			return a == exp
		case int64:
			return exp == (a != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// matchArgs checks that actual holds every expected arg. Extra args are
// ignored.
func matchArgs(actual ir.IRObject, expected map[string]string) bool {
	for key, want := range expected {
		got, ok := actual.String(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides what the state assertions read from.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Engine   *engine.Engine
	Contract *ledger.Contract
	Account  ledger.Name

	// Now is the block time live edges are evaluated at.
	Now ledger.Timestamp
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failure. Trace assertions need no context.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertBalance, AssertIssuer, AssertEdge:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
				break
			}
			actx.Engine.View(func(v ledger.View) {
				switch assertion.Type {
				case AssertBalance:
					err = assertBalance(v, actx.Engine.Contract().Params(), assertion)
				case AssertIssuer:
					err = assertIssuer(v, assertion)
				default:
					err = assertEdge(v, actx.Now, assertion)
				}
			})
		case AssertReplay:
			if actx == nil || actx.Store == nil || actx.Contract == nil {
				err = fmt.Errorf("assertion[%d]: replay requires database context", i)
			} else {
				err = assertReplay(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

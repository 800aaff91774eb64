package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs a fresh root command and captures stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// tempDB returns a database path in a fresh directory.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ubi.db")
}

// invoke runs one action at the given RFC 3339 time and requires it to
// commit.
func invoke(t *testing.T, db, at, caller, action, args string) {
	t.Helper()
	_, _, err := execute(t, "", "--db", db, "invoke", action, "--caller", caller, "--at", at, "--args", args)
	require.NoError(t, err, "%s by %s", action, caller)
}

const (
	t0 = "2026-01-01T00:00:00Z"
	t1 = "2026-01-02T00:00:01Z"
)

// seedLedger launches genesis, onboards alice and bob, and has alice mint
// once.
func seedLedger(t *testing.T, db string) {
	t.Helper()
	invoke(t, db, t0, "ubi", "launch", `{"genesis":"genesis"}`)
	invoke(t, db, t0, "alice", "apply", `{"issuer":"alice","referral":"genesis"}`)
	invoke(t, db, t0, "genesis", "accept", `{"issuer":"genesis","candidate":"alice"}`)
	invoke(t, db, t0, "bob", "apply", `{"issuer":"bob","referral":"alice"}`)
	invoke(t, db, t0, "alice", "accept", `{"issuer":"alice","candidate":"bob"}`)
	invoke(t, db, t1, "alice", "issue", `{"issuer":"alice"}`)
}

// decodeResponse parses a JSON CLI envelope.
func decodeResponse(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_Committed(t *testing.T) {
	db := tempDB(t)

	out, _, err := execute(t, "", "--db", db, "invoke", "launch", "--caller", "ubi", "--at", t0, "--args", `{"genesis":"genesis"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "launch ok (seq 1")
}

func TestInvoke_JSON(t *testing.T) {
	db := tempDB(t)
	seedLedger(t, db)

	out, _, err := execute(t, "", "--db", db, "--format", "json", "invoke", "transfer",
		"--caller", "alice", "--at", t1, "--flow", "rent-flow",
		"--args", `{"from":"alice","to":"bob","token_issuer":"alice","quantity":"5.0000 UBI","memo":"rent"}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp["status"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "transfer", data["action"])
	assert.Equal(t, "rent-flow", data["flow_token"])
	assert.Equal(t, "ok", data["outcome"])
	assert.Equal(t, []any{"alice", "bob"}, data["recipients"])
}

func TestInvoke_RejectedExitsOne(t *testing.T) {
	db := tempDB(t)
	seedLedger(t, db)

	out, _, err := execute(t, "", "--db", db, "invoke", "issue", "--caller", "alice", "--at", t1, "--args", `{"issuer":"alice"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ISSUE_TOO_EARLY")
}

func TestInvoke_UnknownActionExitsTwo(t *testing.T) {
	db := tempDB(t)

	out, _, err := execute(t, "", "--db", db, "invoke", "mint", "--caller", "ubi", "--args", `{}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_ACTION")
}

func TestInvoke_InvalidArgs(t *testing.T) {
	db := tempDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"malformed json", []string{"--args", `{"genesis":`}},
		{"missing arg", []string{"--args", `{}`}},
		{"bad time", []string{"--args", `{"genesis":"genesis"}`, "--at", "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "invoke", "launch", "--caller", "ubi"}, tt.args...)
			_, _, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestInvoke_RequiresCaller(t *testing.T) {
	_, _, err := execute(t, "", "--db", tempDB(t), "invoke", "launch", "--args", `{"genesis":"genesis"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caller")
}

package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, out string) []ServeResponse {
	t.Helper()
	var resps []ServeResponse
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var r ServeResponse
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		resps = append(resps, r)
	}
	return resps
}

func TestServe_ExecutesLines(t *testing.T) {
	db := tempDB(t)
	input := strings.Join([]string{
		`{"action":"launch","caller":"ubi","args":{"genesis":"genesis"},"at":"` + t0 + `","flow":"boot"}`,
		`{"action":"apply","caller":"alice","args":{"issuer":"alice","referral":"genesis"},"at":"` + t0 + `"}`,
		``,
		`{"action":"accept","caller":"genesis","args":{"issuer":"genesis","candidate":"alice"},"at":"` + t0 + `"}`,
		`{"action":"issue","caller":"alice","args":{"issuer":"alice"},"at":"` + t1 + `"}`,
	}, "\n")

	out, _, err := execute(t, input, "--db", db, "serve")
	require.NoError(t, err)

	resps := decodeLines(t, out)
	require.Len(t, resps, 4)
	assert.Equal(t, 1, resps[0].Line)
	assert.Equal(t, "boot", resps[0].Result.FlowToken)
	assert.Equal(t, 5, resps[3].Line)
	for _, r := range resps {
		require.Nil(t, r.Error)
		assert.Equal(t, "ok", r.Result.Outcome)
	}

	show, _, err := execute(t, "", "--db", db, "show", "balance", "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice holds 99.0000 UBI of alice\n", show)
}

func TestServe_ReportsFailures(t *testing.T) {
	db := tempDB(t)
	input := strings.Join([]string{
		`not json`,
		`{"action":"mint","caller":"ubi","args":{}}`,
		`{"action":"launch","caller":"alice","args":{"genesis":"genesis"}}`,
		`{"action":"launch","caller":"ubi","args":{"genesis":"genesis"},"at":"soon"}`,
	}, "\n")

	out, _, err := execute(t, input, "--db", db, "serve")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resps := decodeLines(t, out)
	require.Len(t, resps, 4)
	assert.Equal(t, "BAD_REQUEST", resps[0].Error.Code)
	assert.Equal(t, "UNKNOWN_ACTION", resps[1].Error.Code)
	require.NotNil(t, resps[2].Result)
	assert.Equal(t, "MISSING_AUTH", resps[2].Result.Code)
	assert.Equal(t, "BAD_REQUEST", resps[3].Error.Code)
}

func TestParseServeRequest_DefaultsArgs(t *testing.T) {
	req, err := parseServeRequest([]byte(`{"action":"issue","caller":"alice"}`))
	require.NoError(t, err)
	assert.NotNil(t, req.Args)
	assert.NotZero(t, req.Time)
}

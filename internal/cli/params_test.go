package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Defaults(t *testing.T) {
	out, _, err := execute(t, "", "params")
	require.NoError(t, err)
	assert.Contains(t, out, "initial:     100.0000")
	assert.Contains(t, out, "royalty_pct: 1")
	assert.Contains(t, out, "edge_cap:    50")
}

func TestParams_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast.cue")
	require.NoError(t, os.WriteFile(path, []byte("params: {\n\tissue_wait: \"1h\"\n\troyalty_pct: 10\n}\n"), 0o644))

	out, _, err := execute(t, "", "--format", "json", "params", path)
	require.NoError(t, err)
	data := decodeResponse(t, out)["data"].(map[string]any)
	assert.Equal(t, "1h", data["issue_wait"])
	assert.Equal(t, float64(10), data["royalty_pct"])
}

func TestParams_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("params: royalty_pct: 101\n"), 0o644))

	out, _, err := execute(t, "", "params", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID_PARAMS")
}

func TestParams_Schema(t *testing.T) {
	out, _, err := execute(t, "", "params", "--schema")
	require.NoError(t, err)
	assert.Contains(t, out, "royalty_pct")
}

func TestParams_UsedByEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast.cue")
	require.NoError(t, os.WriteFile(path, []byte("params: initial: \"10.0000\"\n"), 0o644))
	db := tempDB(t)

	for _, args := range [][]string{
		{"launch", "--caller", "ubi", "--args", `{"genesis":"genesis"}`},
		{"issue", "--caller", "genesis", "--args", `{"issuer":"genesis"}`},
	} {
		_, _, err := execute(t, "", append([]string{"--db", db, "--params", path, "invoke"}, append(args, "--at", t1)...)...)
		require.NoError(t, err)
	}

	out, _, err := execute(t, "", "--db", db, "--params", path, "show", "issuer", "genesis")
	require.NoError(t, err)
	assert.Contains(t, out, "supply 10.0000 UBI")
}

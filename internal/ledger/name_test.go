package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	for _, s := range []string{"a", "genesis", "bob.ubi", "abcde1234512", "x5"} {
		n, err := ParseName(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, n.String())
	}

	for _, s := range []string{"", "Bob", "bob6", "abcdefghijklm", "bob.", "b_b", "bob!"} {
		_, err := ParseName(s)
		assert.Equal(t, CodeInvalidName, CodeOf(err), "%q", s)
	}
}

func TestMustName_Panics(t *testing.T) {
	assert.Panics(t, func() { MustName("UPPER") })
}

func TestExpiry(t *testing.T) {
	assert.True(t, Never().After(1<<60))
	assert.True(t, ExpiresAt(10).After(9))
	assert.False(t, ExpiresAt(10).After(10))
}

func TestIssueGate(t *testing.T) {
	assert.False(t, Blocked().Allows(1<<62, Day))
	assert.False(t, IssuedAt(0).Allows(Timestamp(Day), Day))
	assert.True(t, IssuedAt(0).Allows(Timestamp(Day)+1, Day))
}

func TestTimestamp_AddSaturates(t *testing.T) {
	top := Timestamp(1<<63 - 1)
	assert.Equal(t, top, top.Add(Day))
	assert.Equal(t, Timestamp(Day), Timestamp(0).Add(Day))
	assert.Equal(t, Day, FromStd(Day.Std()))
}

func TestError_IsByCode(t *testing.T) {
	err := newErrorf(CodeOverdrawn, map[string]string{"owner": "bob"}, "overdrawn balance")
	assert.ErrorIs(t, err, ErrOverdrawn)
	assert.NotErrorIs(t, err, ErrNotAccepted)
	assert.Equal(t, "OVERDRAWN: overdrawn balance", err.Error())
	assert.Equal(t, KindLedger, err.Kind())
	assert.Equal(t, KindAuth, CodeMissingAuth.Kind())
	assert.Equal(t, Code(""), CodeOf(assert.AnError))
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, int64(10000), p.Emissions())

	bad := p
	bad.EdgeCap = 1
	assert.Error(t, bad.Validate())

	bad = p
	bad.Delta.Amount = 0
	assert.Error(t, bad.Validate())
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("1.5000 UBI")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), q.Amount)

	_, err = ParseQuantity("lots")
	assert.Equal(t, CodeInvalidQuantity, CodeOf(err))
}

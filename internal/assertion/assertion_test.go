package assertion

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	assert.Equal(t, Passed{Description: "call must be successful"},
		Check("call must be successful", "err == nil", true, "ignored"))
	assert.Equal(t, Failed{Description: "call must be successful", Expression: "err == nil", Why: "code=Unavailable"},
		Check("call must be successful", "err == nil", false, "code=Unavailable"))
}

func TestCheck_ExpressionNeverEmpty(t *testing.T) {
	f, ok := Check("body must not be null", "", false, "").(Failed)
	require.True(t, ok)
	require.Equal(t, "body must not be null", f.Expression)
	require.Empty(t, f.Why)
}

func TestEqual(t *testing.T) {
	got := Equal("body size matches requested size", "len(payload.body) == response_size", 100, 314159)
	require.Equal(t, Failed{
		Description: "body size matches requested size",
		Expression:  "len(payload.body) == response_size",
		Why:         "actual=100, expected=314159",
	}, got)

	require.IsType(t, Passed{}, Equal("d", "e", "x", "x"))
}

func TestAllPassed(t *testing.T) {
	require.False(t, AllPassed(nil))
	require.True(t, AllPassed([]Assertion{Passed{"a"}, Passed{"b"}}))
	require.False(t, AllPassed([]Assertion{Passed{"a"}, Failed{"b", "b", ""}}))
	require.False(t, AllPassed([]Assertion{Error("c", errors.New("boom"))}))
}

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal([]Assertion{
		Passed{Description: "p"},
		Failed{Description: "f", Expression: "x == y", Why: "actual=1, expected=2"},
		Errored{Description: "e", Err: errors.New("boom")},
	})
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"status":"passed","description":"p"},
		{"status":"failed","description":"f","expression":"x == y","why":"actual=1, expected=2"},
		{"status":"errored","description":"e","error":"boom"}
	]`, string(b))
}

func TestDesc(t *testing.T) {
	for _, a := range []Assertion{Passed{"x"}, Failed{"x", "e", ""}, Errored{"x", nil}} {
		switch a.(type) {
		case Passed, Failed, Errored:
		default:
			t.Fatal(Unexpected(a))
		}
		require.Equal(t, "x", a.Desc())
	}
}

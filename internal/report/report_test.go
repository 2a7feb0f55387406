package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/runner"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var failing = runner.CaseResult{
	TestCase: testcase.LargeUnary,
	Assertions: []assertion.Assertion{
		assertion.Passed{Description: "call must be successful"},
		assertion.Failed{
			Description: "body size matches requested size",
			Expression:  "len(response.payload.body) == request.response_size",
			Why:         "actual=100, expected=314159",
		},
		assertion.Errored{Description: "test case must not panic", Err: errors.New("panic: boom")},
	},
	Duration: 1500 * time.Microsecond,
}

var passing = runner.CaseResult{
	TestCase:   testcase.EmptyUnary,
	Assertions: []assertion.Assertion{assertion.Passed{Description: "call must be successful"}},
	Duration:   time.Millisecond,
}

func TestConsole(t *testing.T) {
	var b strings.Builder
	c := &Console{Out: &b}
	c.CaseStarted(testcase.LargeUnary)
	c.CaseFinished(failing, nil)

	require.Equal(t, strings.Join([]string{
		"[large_unary]",
		"  ✔ call must be successful",
		"  ✖ body size matches requested size in `len(response.payload.body) == request.response_size`: actual=100, expected=314159",
		"  ⚠ test case must not panic: panic: boom",
		"  FAILED: large_unary (2ms)",
		"",
	}, "\n"), b.String())
}

func TestConsole_DebugOutput(t *testing.T) {
	l := &runner.CapturingLogger{}
	l.Printf("calling %s", "http://127.0.0.1:10000/grpc.testing.TestService/UnaryCall")
	debug := l.Output()

	cases := []struct {
		name   string
		c      Console
		res    runner.CaseResult
		dumped bool
	}{
		{"failure without debug", Console{}, failing, false},
		{"failure with debug", Console{DebugOnFailure: true}, failing, true},
		{"success with debug", Console{DebugOnFailure: true}, passing, false},
		{"success with debug_all", Console{DebugAlways: true}, passing, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b strings.Builder
			c := tc.c
			c.Out = &b
			c.CaseFinished(tc.res, debug)
			require.Equal(t, tc.dumped, strings.Contains(b.String(), "    DEBUG ["), b.String())
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var b strings.Builder
	PrintSummary(&b, runner.Result{Cases: []runner.CaseResult{passing}}, []string{"interop-client"})
	require.Equal(t, "\nAll 1 test cases passed\n", b.String())

	b.Reset()
	PrintSummary(&b, runner.Result{Cases: []runner.CaseResult{passing, failing}},
		[]string{"interop-client", "--server_port", "8080", "--test_case=empty_unary,large_unary"})
	require.Equal(t, strings.Join([]string{
		"",
		"1 of 2 test cases failed:",
		"  - large_unary",
		"",
		"Re-run the failed cases with:",
		"  interop-client --server_port 8080 --test_case=large_unary",
		"",
	}, "\n"), b.String())
}

func TestRerunCommand(t *testing.T) {
	cases := []testcase.TestCase{testcase.PingPong, testcase.EmptyStream}
	require.Equal(t,
		"interop-client --server_host 'my host' --test_case=ping_pong,empty_stream",
		RerunCommand([]string{"interop-client", "--test_case", "all", "--server_host", "my host"}, cases))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	ep := endpoint.Endpoint{Host: "127.0.0.1", Port: 10000}
	require.NoError(t, WriteJSON(path, ep, runner.Result{Cases: []runner.CaseResult{failing}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Equal(t, false, doc["ok"])
	require.Equal(t, map[string]any{"host": "127.0.0.1", "port": float64(10000)}, doc["server"])
	cases := doc["cases"].([]any)
	require.Len(t, cases, 1)
	c := cases[0].(map[string]any)
	require.Equal(t, "large_unary", c["test_case"])
	require.Equal(t, float64(1), c["duration_ms"])
	as := c["assertions"].([]any)
	require.Len(t, as, 3)
	require.Equal(t, map[string]any{
		"status":      "failed",
		"description": "body size matches requested size",
		"expression":  "len(response.payload.body) == request.response_size",
		"why":         "actual=100, expected=314159",
	}, as[1])
	require.Equal(t, "errored", as[2].(map[string]any)["status"])
}

// Package report renders run results for the operator.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/runner"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	errColor   = color.New(color.FgYellow)
	titleColor = color.New(color.Bold)
	debugColor = color.New(color.Faint)
)

// Console prints each case as it finishes.
type Console struct {
	Out io.Writer
	// DebugOnFailure dumps the case's debug output when it did not pass.
	DebugOnFailure bool
	// DebugAlways dumps debug output for every case.
	DebugAlways bool
}

var _ runner.Reporter = (*Console)(nil)

func (c *Console) CaseStarted(tc testcase.TestCase) {
	titleColor.Fprintf(c.Out, "[%s]\n", tc)
}

func (c *Console) CaseFinished(res runner.CaseResult, debugOutput runner.CapturedOutput) {
	for _, a := range res.Assertions {
		WriteAssertion(c.Out, a)
	}
	passed := res.Passed()
	if !passed {
		failColor.Fprintf(c.Out, "  FAILED: %s (%s)\n", res.TestCase, res.Duration.Round(time.Millisecond))
	}
	if len(debugOutput) > 0 && (c.DebugAlways || (!passed && c.DebugOnFailure)) {
		var buf strings.Builder
		debugOutput.Dump(&buf, "    DEBUG ")
		debugColor.Fprint(c.Out, buf.String())
	}
}

// WriteAssertion prints one assertion line.
func WriteAssertion(w io.Writer, a assertion.Assertion) {
	switch a := a.(type) {
	case assertion.Passed:
		passColor.Fprintf(w, "  ✔ %s\n", a.Description)
	case assertion.Failed:
		failColor.Fprintf(w, "  ✖ %s", a.Description)
		fmt.Fprintf(w, " in `%s`", a.Expression)
		if a.Why != "" {
			fmt.Fprintf(w, ": %s", a.Why)
		}
		fmt.Fprintln(w)
	case assertion.Errored:
		errColor.Fprintf(w, "  ⚠ %s", a.Description)
		fmt.Fprintf(w, ": %v\n", a.Err)
	default:
		panic(assertion.Unexpected(a))
	}
}

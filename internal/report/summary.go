package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/hanpama/grpc-interop/internal/runner"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

// PrintSummary prints pass and fail counts. When cases failed and argv is
// the command line of the run, it also prints a command that re-runs only
// those cases.
func PrintSummary(w io.Writer, res runner.Result, argv []string) {
	failed := res.Failed()
	total := len(res.Cases)
	fmt.Fprintln(w)
	if len(failed) == 0 {
		passColor.Fprintf(w, "All %d test cases passed\n", total)
		return
	}
	failColor.Fprintf(w, "%d of %d test cases failed:\n", len(failed), total)
	for _, tc := range failed {
		fmt.Fprintf(w, "  - %s\n", tc)
	}
	if len(argv) > 0 {
		fmt.Fprintf(w, "\nRe-run the failed cases with:\n  %s\n", RerunCommand(argv, failed))
	}
}

const testCaseFlag = "--test_case"

// RerunCommand rewrites argv so that it selects only cases. Any test case
// selection already present in argv is dropped.
func RerunCommand(argv []string, cases []testcase.TestCase) string {
	out := make([]string, 0, len(argv)+1)
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == testCaseFlag || arg == "-test_case" {
			i++
			continue
		}
		if strings.HasPrefix(arg, testCaseFlag+"=") || strings.HasPrefix(arg, "-test_case=") {
			continue
		}
		out = append(out, arg)
	}
	names := make([]string, len(cases))
	for i, tc := range cases {
		names[i] = tc.String()
	}
	out = append(out, testCaseFlag+"="+strings.Join(names, ","))
	return shellescape.QuoteCommand(out)
}

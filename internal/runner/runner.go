// Package runner sequences the requested test cases against one connection.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/events"
	"github.com/hanpama/grpc-interop/internal/reqid"
	"github.com/hanpama/grpc-interop/internal/rpc"
	"github.com/hanpama/grpc-interop/internal/scenario"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

// ErrNoTestCases is returned by Run when nothing was requested.
var ErrNoTestCases = errors.New("runner: no test cases requested")

// Conn is the shared connection every scenario of a run goes through.
type Conn interface {
	rpc.Capability
	Close() error
}

// EstablishFunc opens the connection for a run.
type EstablishFunc func(ctx context.Context, ep endpoint.Endpoint) (Conn, error)

// Reporter observes a run while it happens. It renders, it never decides
// pass or fail.
type Reporter interface {
	CaseStarted(tc testcase.TestCase)
	CaseFinished(res CaseResult, debugOutput CapturedOutput)
}

type CaseResult struct {
	TestCase   testcase.TestCase
	Assertions []assertion.Assertion
	Duration   time.Duration
}

func (r CaseResult) Passed() bool { return assertion.AllPassed(r.Assertions) }

// Result holds the cases of a run in the order they were requested.
type Result struct {
	Cases []CaseResult
}

func (r Result) OK() bool {
	if len(r.Cases) == 0 {
		return false
	}
	for _, c := range r.Cases {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// Failed returns the cases that did not pass, in run order.
func (r Result) Failed() []testcase.TestCase {
	var out []testcase.TestCase
	for _, c := range r.Cases {
		if !c.Passed() {
			out = append(out, c.TestCase)
		}
	}
	return out
}

type Runner struct {
	establish EstablishFunc
	reporter  Reporter
	lookup    func(testcase.TestCase) (scenario.Func, bool)
}

type Option func(*Runner)

func WithReporter(r Reporter) Option { return func(rn *Runner) { rn.reporter = r } }

// WithScenarios replaces the scenario table. Tests use it to inject
// misbehaving scenarios.
func WithScenarios(lookup func(testcase.TestCase) (scenario.Func, bool)) Option {
	return func(rn *Runner) { rn.lookup = lookup }
}

func New(establish EstablishFunc, opts ...Option) *Runner {
	r := &Runner{establish: establish, reporter: nopReporter{}, lookup: scenario.Lookup}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes cases against ep. Unsupported cases and a failed connection
// abort the run before any case executes; the returned Result is then
// empty.
func (r *Runner) Run(ctx context.Context, ep endpoint.Endpoint, cases []testcase.TestCase) (Result, error) {
	if len(cases) == 0 {
		return Result{}, ErrNoTestCases
	}
	for _, tc := range cases {
		if err := tc.CheckSupported(); err != nil {
			return Result{}, err
		}
	}

	conn, err := r.establish(ctx, ep)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	res := Result{Cases: make([]CaseResult, 0, len(cases))}
	for _, tc := range cases {
		res.Cases = append(res.Cases, r.runCase(ctx, conn, ep, tc))
	}
	return res, nil
}

func (r *Runner) runCase(parent context.Context, conn Conn, ep endpoint.Endpoint, tc testcase.TestCase) CaseResult {
	ctx, _ := reqid.NewContext(parent)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := &CapturingLogger{}
	r.reporter.CaseStarted(tc)
	eventbus.Publish(ctx, events.CaseStart{TestCase: tc.String(), Target: ep.Address()})

	start := time.Now()
	var as []assertion.Assertion
	if f, ok := r.lookup(tc); ok {
		as = invoke(ctx, f, scenario.Env{Capability: conn, Endpoint: ep, Logger: logger})
	} else {
		as = []assertion.Assertion{assertion.Error("test case must have a scenario", &testcase.UnsupportedError{TestCase: tc})}
	}
	if len(as) == 0 {
		as = []assertion.Assertion{assertion.Error("test case must produce assertions", errors.New("scenario returned no assertions"))}
	}
	res := CaseResult{TestCase: tc, Assertions: as, Duration: time.Since(start)}

	eventbus.Publish(ctx, events.CaseFinish{
		TestCase:   tc.String(),
		Target:     ep.Address(),
		Passed:     res.Passed(),
		Assertions: len(as),
		Duration:   res.Duration,
	})
	r.reporter.CaseFinished(res, logger.Output())
	return res
}

// invoke runs f and turns a panic into an Errored assertion.
func invoke(ctx context.Context, f scenario.Func, env scenario.Env) (as []assertion.Assertion) {
	defer func() {
		if p := recover(); p != nil {
			as = append(as, assertion.Error("test case must not panic", fmt.Errorf("panic: %v", p)))
		}
	}()
	return f(ctx, env)
}

type nopReporter struct{}

func (nopReporter) CaseStarted(testcase.TestCase)           {}
func (nopReporter) CaseFinished(CaseResult, CapturedOutput) {}

// Package assertion defines the outcome of a single check made by a scenario.
//
// An Assertion is exactly one of Passed, Failed or Errored. Consumers switch
// on the concrete type:
//
//	switch a := a.(type) {
//	case assertion.Passed:
//	case assertion.Failed:
//	case assertion.Errored:
//	default:
//		panic(assertion.Unexpected(a))
//	}
package assertion

import (
	"encoding/json"
	"fmt"
)

// Assertion is a closed sum type; only this package implements it.
type Assertion interface {
	Desc() string
	assertion()
}

// Passed records a predicate that held.
type Passed struct {
	Description string
}

// Failed records a predicate that did not hold. Expression is the predicate
// text and is never empty; Why is an optional diagnostic.
type Failed struct {
	Description string
	Expression  string
	Why         string
}

// Errored records an unexpected fault that prevented the predicate from
// being evaluated at all.
type Errored struct {
	Description string
	Err         error
}

func (a Passed) Desc() string  { return a.Description }
func (a Failed) Desc() string  { return a.Description }
func (a Errored) Desc() string { return a.Description }

func (Passed) assertion()  {}
func (Failed) assertion()  {}
func (Errored) assertion() {}

// Check returns Passed when ok holds, otherwise Failed with expr and why.
func Check(description, expr string, ok bool, why string) Assertion {
	if ok {
		return Passed{Description: description}
	}
	if expr == "" {
		expr = description
	}
	return Failed{Description: description, Expression: expr, Why: why}
}

// Checkf is Check with a formatted diagnostic. The diagnostic is only
// rendered when the check fails.
func Checkf(description, expr string, ok bool, format string, args ...any) Assertion {
	if ok {
		return Passed{Description: description}
	}
	return Check(description, expr, false, fmt.Sprintf(format, args...))
}

// Equal compares actual with expected and reports both values on mismatch.
func Equal[T comparable](description, expr string, actual, expected T) Assertion {
	return Checkf(description, expr, actual == expected, "actual=%v, expected=%v", actual, expected)
}

// Error returns Errored for err.
func Error(description string, err error) Assertion {
	return Errored{Description: description, Err: err}
}

// AllPassed reports whether every assertion is Passed. An empty list does
// not count as passing.
func AllPassed(as []Assertion) bool {
	if len(as) == 0 {
		return false
	}
	for _, a := range as {
		if _, ok := a.(Passed); !ok {
			return false
		}
	}
	return true
}

// Unexpected builds the panic value for a type switch that fell through.
func Unexpected(a Assertion) string {
	return fmt.Sprintf("assertion: unexpected variant %T", a)
}

type jsonAssertion struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Expression  string `json:"expression,omitempty"`
	Why         string `json:"why,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (a Passed) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonAssertion{Status: "passed", Description: a.Description})
}

func (a Failed) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonAssertion{Status: "failed", Description: a.Description, Expression: a.Expression, Why: a.Why})
}

func (a Errored) MarshalJSON() ([]byte, error) {
	msg := "<nil>"
	if a.Err != nil {
		msg = a.Err.Error()
	}
	return json.Marshal(jsonAssertion{Status: "errored", Description: a.Description, Error: msg})
}

package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/runner"
)

type jsonServer struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	HostOverride string `json:"host_override,omitempty"`
}

type jsonCase struct {
	TestCase   string                `json:"test_case"`
	Passed     bool                  `json:"passed"`
	DurationMS int64                 `json:"duration_ms"`
	Assertions []assertion.Assertion `json:"assertions"`
}

type jsonReport struct {
	Server jsonServer `json:"server"`
	OK     bool       `json:"ok"`
	Cases  []jsonCase `json:"cases"`
}

// WriteJSON writes res as an indented JSON document to path.
func WriteJSON(path string, ep endpoint.Endpoint, res runner.Result) error {
	doc := jsonReport{
		Server: jsonServer{Host: ep.Host, Port: ep.Port, HostOverride: ep.HostOverride},
		OK:     res.OK(),
		Cases:  make([]jsonCase, len(res.Cases)),
	}
	for i, c := range res.Cases {
		doc.Cases[i] = jsonCase{
			TestCase:   c.TestCase.String(),
			Passed:     c.Passed(),
			DurationMS: c.Duration.Milliseconds(),
			Assertions: c.Assertions,
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

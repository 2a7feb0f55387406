package main

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/grpc-interop/internal/config"
	"github.com/hanpama/grpc-interop/internal/interoptest"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut strings.Builder
	err = run(args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestList(t *testing.T) {
	out, _, err := execute(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, len(testcase.All()))
	require.Equal(t, "empty_unary", lines[0])
	require.Contains(t, lines, "compute_engine_creds (unsupported)")
	require.Contains(t, lines, "concurrent_large_unary")
}

func TestProto(t *testing.T) {
	out, _, err := execute(t, "proto")
	require.NoError(t, err)
	require.Contains(t, out, "package grpc.testing;")
	require.Contains(t, out, "service TestService {")
	require.Contains(t, out, "service UnimplementedService {")
}

func TestProto_Out(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "proto", "--out", dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "grpc", "testing", "test.proto"))
	require.NoError(t, err)
}

func TestSetupFaults(t *testing.T) {
	_, _, err := execute(t, "--test_case=bogus")
	require.ErrorIs(t, err, testcase.ErrUnknownTestCase)

	_, _, err = execute(t, "--use_tls")
	require.ErrorIs(t, err, config.ErrTLSUnsupported)

	_, _, err = execute(t, "--service_account_key_file=key.json")
	require.ErrorIs(t, err, config.ErrGCEAuthUnsupported)

	_, _, err = execute(t, "extra")
	require.Error(t, err)
}

func TestUnsupportedCaseDoesNotConnect(t *testing.T) {
	out, stderr, err := execute(t, "--server_port=1", "--test_case=empty_unary,jwt_token_creds")
	var unsupported *testcase.UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	require.Empty(t, out)
	require.NotContains(t, stderr, "connecting")
}

func TestConnectFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	out, _, err := execute(t, "--server_port="+strconv.Itoa(port), "--test_case=empty_unary", "--connect_timeout=2s")
	require.ErrorContains(t, err, "grpctp: connect")
	require.Empty(t, out)
}

func TestRun_ReferencePeer(t *testing.T) {
	srv := interoptest.StartTCP(t)
	path := filepath.Join(t.TempDir(), "report.json")

	out, _, err := execute(t,
		"--server_port", strconv.Itoa(srv.Endpoint().Port),
		"--test_case=empty_unary,large_unary,ping-pong",
		"--no_color",
		"--report_json", path)
	require.NoError(t, err)
	require.Contains(t, out, "[empty_unary]\n  ✔ call must be successful\n  ✔ body must not be null\n")
	require.Contains(t, out, "[ping_pong]\n")
	require.Contains(t, out, "All 3 test cases passed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		OK    bool `json:"ok"`
		Cases []struct {
			TestCase string `json:"test_case"`
		} `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.True(t, doc.OK)
	require.Len(t, doc.Cases, 3)
	require.Equal(t, "ping_pong", doc.Cases[2].TestCase)
}

func TestRun_FailurePrintsRerunCommand(t *testing.T) {
	srv := interoptest.StartTCP(t, interoptest.WithResponseSize(100))
	port := strconv.Itoa(srv.Endpoint().Port)

	out, _, err := execute(t, "--server_port", port, "--test_case=empty_unary,large_unary", "--no_color", "--debug")
	require.EqualError(t, err, "1 of 2 test cases failed")
	require.Contains(t, out, "  ✖ body size matches requested size in `len(response.payload.body) == request.response_size`: actual=100, expected=314159\n")
	require.Contains(t, out, "    DEBUG [")
	require.Contains(t, out, "interop-client --server_port "+port+" --no_color --debug --test_case=large_unary\n")
}

func TestRun_EnvFile(t *testing.T) {
	srv := interoptest.StartTCP(t)
	path := filepath.Join(t.TempDir(), ".env")
	env := "INTEROP_SERVER_PORT=" + strconv.Itoa(srv.Endpoint().Port) + "\nINTEROP_TEST_CASE=empty_unary\n"
	require.NoError(t, os.WriteFile(path, []byte(env), 0o600))

	out, _, err := execute(t, "--env_file", path, "--no_color")
	require.NoError(t, err)
	require.Contains(t, out, "[empty_unary]")
	require.Contains(t, out, "All 1 test cases passed")
}

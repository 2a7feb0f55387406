package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	require.NoError(t, c.Validate())

	ep, err := c.Endpoint()
	require.NoError(t, err)
	require.Equal(t, endpoint.Endpoint{Host: "127.0.0.1", Port: 10000}, ep)

	cases, err := c.Cases()
	require.NoError(t, err)
	require.Equal(t, []testcase.TestCase{testcase.LargeUnary}, cases)
	require.Equal(t, 10*time.Second, c.RPCTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
		msg    string
	}{
		{name: "tls", modify: func(c *Config) { c.UseTLS = true }, err: ErrTLSUnsupported},
		{name: "oauth scope", modify: func(c *Config) { c.OAuthScope = "https://www.googleapis.com/auth/xapi.zoo" }, err: ErrGCEAuthUnsupported},
		{name: "service account", modify: func(c *Config) { c.DefaultServiceAccount = "x@y" }, err: ErrGCEAuthUnsupported},
		{name: "key file", modify: func(c *Config) { c.ServiceAccountKeyFile = "key.json" }, err: ErrGCEAuthUnsupported},
		{name: "port", modify: func(c *Config) { c.ServerPort = 0 }, msg: "endpoint: server port 0 out of range"},
		{name: "host", modify: func(c *Config) { c.ServerHost = "" }, msg: "endpoint: server host is required"},
		{name: "unknown case", modify: func(c *Config) { c.TestCases = []string{"bogus"} }, err: testcase.ErrUnknownTestCase},
		{name: "no case", modify: func(c *Config) { c.TestCases = nil }, msg: "config: no test case selected"},
		{name: "test ca is accepted", modify: func(c *Config) { c.UseTestCA = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.modify(c)
			err := c.Validate()
			switch {
			case tt.err != nil:
				require.ErrorIs(t, err, tt.err)
			case tt.msg != "":
				require.EqualError(t, err, tt.msg)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := New()
	env := map[string]string{
		"INTEROP_SERVER_HOST":     "interop.local",
		"INTEROP_SERVER_PORT":     "8080",
		"INTEROP_TEST_CASE":       "empty_unary, ping-pong,",
		"INTEROP_RPC_TIMEOUT":     "3s",
		"INTEROP_DEBUG":           "true",
		"INTEROP_UNKNOWN_SETTING": "ignored",
	}
	explicit := func(flag string) bool { return flag == "server_port" }
	require.NoError(t, c.ApplyEnv(env, explicit))

	require.Equal(t, "interop.local", c.ServerHost)
	require.Equal(t, DefaultServerPort, c.ServerPort)
	require.Equal(t, []string{"empty_unary", "ping-pong"}, c.TestCases)
	require.Equal(t, 3*time.Second, c.RPCTimeout)
	require.True(t, c.Debug)
}

func TestApplyEnv_BadValue(t *testing.T) {
	err := New().ApplyEnv(map[string]string{"INTEROP_SERVER_PORT": "ten"}, nil)
	require.ErrorContains(t, err, `config: INTEROP_SERVER_PORT="ten"`)
}

func TestReadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("INTEROP_SERVER_HOST=from-file\nINTEROP_SERVER_PORT=9000\nOTHER=x\n"), 0o600))
	t.Setenv("INTEROP_SERVER_PORT", "9001")

	env, err := ReadEnv(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", env["INTEROP_SERVER_HOST"])
	require.Equal(t, "9001", env["INTEROP_SERVER_PORT"])
	_, ok := env["OTHER"]
	require.False(t, ok)
}

func TestReadEnv_MissingFile(t *testing.T) {
	_, err := ReadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
	require.Nil(t, SplitList(""))
}

// Package config holds the settings of one client run. Values come from
// defaults, then the environment (an optional dotenv file and INTEROP_*
// variables), then explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/testcase"
)

var (
	ErrTLSUnsupported     = errors.New("TLS is not supported by this client")
	ErrGCEAuthUnsupported = errors.New("GCE authentication is not supported by this client")
)

// Config holds all settings of a run
type Config struct {
	// Server
	ServerHost         string
	ServerHostOverride string
	ServerPort         int

	// Selection; names as given by the operator
	TestCases []string

	// Security; accepted for compatibility, see Validate
	UseTLS                bool
	UseTestCA             bool
	CAFile                string
	OAuthScope            string
	DefaultServiceAccount string
	ServiceAccountKeyFile string

	ConnectTimeout time.Duration
	RPCTimeout     time.Duration

	// Output
	ReportJSON string
	Debug      bool
	DebugAll   bool
	NoColor    bool

	// Tracing; disabled when OtelEndpoint is empty
	OtelEndpoint string
	OtelService  string

	EnvFile string
}

// New creates a Config with defaults
func New() *Config {
	return &Config{
		ServerHost:     DefaultServerHost,
		ServerPort:     DefaultServerPort,
		TestCases:      []string{DefaultTestCase},
		CAFile:         DefaultCAFile,
		ConnectTimeout: DefaultConnectTimeout,
		RPCTimeout:     DefaultRPCTimeout,
		OtelService:    DefaultOtelService,
	}
}

// setting binds a flag name to the field it sets. The environment variable
// of a setting is EnvPrefix plus the upper-cased flag name.
type setting struct {
	name string
	set  func(c *Config, v string) error
}

func str(f func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *f(c) = v; return nil }
}

func boolean(f func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func duration(f func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*f(c) = d
		return nil
	}
}

var settings = []setting{
	{"server_host", str(func(c *Config) *string { return &c.ServerHost })},
	{"server_host_override", str(func(c *Config) *string { return &c.ServerHostOverride })},
	{"server_port", func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.ServerPort = p
		return nil
	}},
	{"test_case", func(c *Config, v string) error { c.TestCases = SplitList(v); return nil }},
	{"use_tls", boolean(func(c *Config) *bool { return &c.UseTLS })},
	{"use_test_ca", boolean(func(c *Config) *bool { return &c.UseTestCA })},
	{"ca_file", str(func(c *Config) *string { return &c.CAFile })},
	{"oauth_scope", str(func(c *Config) *string { return &c.OAuthScope })},
	{"default_service_account", str(func(c *Config) *string { return &c.DefaultServiceAccount })},
	{"service_account_key_file", str(func(c *Config) *string { return &c.ServiceAccountKeyFile })},
	{"connect_timeout", duration(func(c *Config) *time.Duration { return &c.ConnectTimeout })},
	{"rpc_timeout", duration(func(c *Config) *time.Duration { return &c.RPCTimeout })},
	{"report_json", str(func(c *Config) *string { return &c.ReportJSON })},
	{"debug", boolean(func(c *Config) *bool { return &c.Debug })},
	{"debug_all", boolean(func(c *Config) *bool { return &c.DebugAll })},
	{"no_color", boolean(func(c *Config) *bool { return &c.NoColor })},
	{"otel_endpoint", str(func(c *Config) *string { return &c.OtelEndpoint })},
	{"otel_service", str(func(c *Config) *string { return &c.OtelService })},
}

// EnvName returns the environment variable read for a flag.
func EnvName(flag string) string { return EnvPrefix + strings.ToUpper(flag) }

// ReadEnv collects the INTEROP_* variables of the dotenv file at path (if
// path is not empty) and of the process environment. Process variables win
// over the file.
func ReadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)
	if path != "" {
		file, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		for k, v := range file {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv sets every field whose variable is present in env, skipping the
// flags for which explicit reports true.
func (c *Config) ApplyEnv(env map[string]string, explicit func(flag string) bool) error {
	for _, s := range settings {
		if explicit != nil && explicit(s.name) {
			continue
		}
		v, ok := env[EnvName(s.name)]
		if !ok {
			continue
		}
		if err := s.set(c, v); err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvName(s.name), v, err)
		}
	}
	return nil
}

// Validate rejects settings this client cannot honor. These are setup
// faults: nothing runs when Validate fails.
func (c *Config) Validate() error {
	if c.UseTLS {
		return ErrTLSUnsupported
	}
	if c.OAuthScope != "" || c.DefaultServiceAccount != "" || c.ServiceAccountKeyFile != "" {
		return ErrGCEAuthUnsupported
	}
	if c.ConnectTimeout < 0 || c.RPCTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if _, err := c.Endpoint(); err != nil {
		return err
	}
	_, err := c.Cases()
	return err
}

// Endpoint returns the server the run targets.
func (c *Config) Endpoint() (endpoint.Endpoint, error) {
	return endpoint.New(c.ServerHost, c.ServerPort, c.ServerHostOverride)
}

// Cases resolves the selected test case names.
func (c *Config) Cases() ([]testcase.TestCase, error) {
	if len(c.TestCases) == 0 {
		return nil, errors.New("config: no test case selected")
	}
	return testcase.ParseList(c.TestCases)
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hanpama/grpc-interop/internal/config"
	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/grpctp"
	"github.com/hanpama/grpc-interop/internal/otel"
	"github.com/hanpama/grpc-interop/internal/report"
	"github.com/hanpama/grpc-interop/internal/runner"
	"github.com/hanpama/grpc-interop/internal/testcase"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const name = "interop-client"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(args, stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(args []string, stdout, stderr io.Writer) *cobra.Command {
	cfg := config.New()
	var testCases string

	root := &cobra.Command{
		Use:   name,
		Short: "gRPC interoperability test client",
		Long: `Runs the gRPC interop test cases against a TestService server over
plaintext HTTP/2 and reports one line per assertion.

Settings may also come from INTEROP_<FLAG> environment variables (for
example INTEROP_SERVER_PORT) or a dotenv file given with --env_file.
Flags set on the command line take precedence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("test_case") {
				cfg.TestCases = config.SplitList(testCases)
			}
			env, err := config.ReadEnv(cfg.EnvFile)
			if err != nil {
				return err
			}
			if err := cfg.ApplyEnv(env, cmd.Flags().Changed); err != nil {
				return err
			}
			return runTests(cmd.Context(), cfg, append([]string{name}, args...), stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.Flags()
	f.StringVar(&cfg.ServerHost, "server_host", config.DefaultServerHost, "The server host to connect to. For example, \"localhost\" or \"127.0.0.1\"")
	f.StringVar(&cfg.ServerHostOverride, "server_host_override", "", "The server host to claim to be connecting to, for use in the HTTP/2 :authority header. If unspecified, the value of --server_host is used")
	f.IntVar(&cfg.ServerPort, "server_port", config.DefaultServerPort, "The server port to connect to. For example, \"8080\"")
	f.StringVar(&testCases, "test_case", config.DefaultTestCase, "Comma separated list of test cases to run (see the list command)")
	f.BoolVar(&cfg.UseTLS, "use_tls", false, "Whether to use a plaintext or encrypted connection (TLS is not supported)")
	f.BoolVar(&cfg.UseTestCA, "use_test_ca", false, "Whether to replace platform root CAs with ca.pem as the CA root")
	f.StringVar(&cfg.CAFile, "ca_file", config.DefaultCAFile, "The file containing the CA root cert file")
	f.StringVar(&cfg.OAuthScope, "oauth_scope", "", "The scope for OAuth2 tokens (GCE auth is not supported)")
	f.StringVar(&cfg.DefaultServiceAccount, "default_service_account", "", "Email of GCE default service account (GCE auth is not supported)")
	f.StringVar(&cfg.ServiceAccountKeyFile, "service_account_key_file", "", "Path to service account json key file (GCE auth is not supported)")
	f.DurationVar(&cfg.ConnectTimeout, "connect_timeout", config.DefaultConnectTimeout, "Time allowed to connect to the server")
	f.DurationVar(&cfg.RPCTimeout, "rpc_timeout", config.DefaultRPCTimeout, "Deadline for calls that do not set their own")
	f.StringVar(&cfg.ReportJSON, "report_json", "", "Also write the results as JSON to this file")
	f.BoolVar(&cfg.Debug, "debug", false, "Print debug output of failed test cases")
	f.BoolVar(&cfg.DebugAll, "debug_all", false, "Print debug output of every test case")
	f.BoolVar(&cfg.NoColor, "no_color", false, "Disable colored output")
	f.StringVar(&cfg.OtelEndpoint, "otel_endpoint", "", "OTLP/gRPC collector endpoint; tracing is off when empty")
	f.StringVar(&cfg.OtelService, "otel_service", config.DefaultOtelService, "OpenTelemetry service name")
	f.StringVar(&cfg.EnvFile, "env_file", "", "Read INTEROP_* settings from this dotenv file")

	root.AddCommand(newListCmd(stdout), newProtoCmd(stdout))
	return root
}

func runTests(ctx context.Context, cfg *config.Config, argv []string, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	ep, err := cfg.Endpoint()
	if err != nil {
		return err
	}
	cases, err := cfg.Cases()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	shutdown, err := otel.Setup(cfg.OtelEndpoint, cfg.OtelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	logger := log.New(stderr, "", log.LstdFlags)
	establish := func(ctx context.Context, ep endpoint.Endpoint) (runner.Conn, error) {
		logger.Printf("connecting to %s", ep)
		conn, err := grpctp.Establish(ctx, ep,
			grpctp.WithConnectTimeout(cfg.ConnectTimeout),
			grpctp.WithRPCTimeout(cfg.RPCTimeout))
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	console := &report.Console{Out: stdout, DebugOnFailure: cfg.Debug || cfg.DebugAll, DebugAlways: cfg.DebugAll}
	res, err := runner.New(establish, runner.WithReporter(console)).Run(ctx, ep, cases)
	if err != nil {
		return err
	}
	if cfg.ReportJSON != "" {
		if err := report.WriteJSON(cfg.ReportJSON, ep, res); err != nil {
			return err
		}
	}
	report.PrintSummary(stdout, res, argv)
	if !res.OK() {
		return fmt.Errorf("%d of %d test cases failed", len(res.Failed()), len(res.Cases))
	}
	return nil
}

func newListCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the known test cases",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, tc := range testcase.All() {
				if tc.Supported() {
					fmt.Fprintf(stdout, "%s\n", tc)
				} else {
					fmt.Fprintf(stdout, "%s (unsupported)\n", tc)
				}
			}
			return nil
		},
	}
}

func newProtoCmd(stdout io.Writer) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "proto",
		Short: "Print the TestService definitions the client is built from",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			reg := testproto.Default()
			if outDir == "" {
				return reg.Print(stdout)
			}
			if err := testproto.Render(reg, outDir); err != nil {
				return fmt.Errorf("render proto: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Write the .proto file under this directory instead of stdout")
	return cmd
}

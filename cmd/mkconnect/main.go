// Command mkconnect connects to an endpoint, optionally through a SOCKS5
// proxy and optionally using TLS, and prints what happened.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/apex/log"
	"github.com/ooni/mknet/internal/connect"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/tlsx"
	"github.com/spf13/cobra"
)

// Options contains the options you can set from the CLI.
type Options struct {
	Addresses          []string
	AllowDirtyShutdown bool
	AllowLegacyTLS     bool
	ALPN               []string
	CABundlePath       string
	ConfigFile         string
	MetricsDump        bool
	Payload            string
	Proxy              string
	Repeat             int
	SNI                string
	Timeout            float64
	TLS                bool
	Verbose            bool
}

func main() {
	var options Options
	rootCmd := newRootCommand(&options)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root command and binds its flags to options.
func newRootCommand(options *Options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mkconnect [flags] HOST PORT",
		Short:        "mkconnect connects to HOST:PORT and reports what happened",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return mainWithOptions(cmd, args, options, os.Stdout)
	}
	flags := rootCmd.Flags()

	flags.StringSliceVar(
		&options.Addresses,
		"address",
		[]string{},
		"use the given address rather than resolving HOST (may be specified multiple times)",
	)

	flags.BoolVar(
		&options.AllowDirtyShutdown,
		"allow-dirty-tls-shutdown",
		false,
		"treat an EOF without close_notify as a clean EOF",
	)

	flags.BoolVar(
		&options.AllowLegacyTLS,
		"allow-legacy-tls",
		false,
		"allow TLS versions older than TLS 1.2",
	)

	flags.StringSliceVar(
		&options.ALPN,
		"alpn",
		[]string{},
		"ALPN protocol to negotiate (may be specified multiple times)",
	)

	flags.StringVar(
		&options.CABundlePath,
		"ca-bundle-path",
		"",
		"CA bundle to use instead of the system one",
	)

	flags.StringVarP(
		&options.ConfigFile,
		"config",
		"c",
		"",
		"read settings from the given JSON (with comments) file",
	)

	flags.BoolVar(
		&options.MetricsDump,
		"metrics-dump",
		false,
		"print the collected metrics before exiting",
	)

	flags.StringVarP(
		&options.Payload,
		"payload",
		"p",
		"",
		"send the given payload and print what we receive",
	)

	flags.StringVar(
		&options.Proxy,
		"proxy",
		"",
		"connect through the SOCKS5 proxy at the given host:port",
	)

	flags.IntVarP(
		&options.Repeat,
		"repeat",
		"n",
		1,
		"connect the given number of times and summarize the connect times",
	)

	flags.StringVar(
		&options.SNI,
		"sni",
		"",
		"use the given SNI rather than HOST",
	)

	flags.Float64Var(
		&options.Timeout,
		"timeout",
		connect.DefaultTimeout.Seconds(),
		"connect and idle timeout in seconds",
	)

	flags.BoolVar(
		&options.TLS,
		"tls",
		false,
		"perform the TLS handshake",
	)

	flags.BoolVarP(
		&options.Verbose,
		"verbose",
		"v",
		false,
		"increase verbosity level",
	)

	return rootCmd
}

// errInvalidRepeat indicates that --repeat is not positive.
var errInvalidRepeat = errors.New("--repeat must be positive")

func mainWithOptions(cmd *cobra.Command, args []string, options *Options, stdout io.Writer) error {
	log.SetHandler(newLogHandler(os.Stderr))
	if options.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	port, err := strconv.Atoi(args[1])
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %s", args[1])
	}
	if options.Repeat <= 0 {
		return errInvalidRepeat
	}
	config, err := newConfig(cmd, options)
	if err != nil {
		return err
	}

	rnr := &runner{
		Addresses: options.Addresses,
		Config:    config,
		Hostname:  args[0],
		Logger:    log.Log,
		Orchestrator: &connect.Orchestrator{
			Cache:    tlsx.NewCache(),
			Logger:   log.Log,
			Reactor:  reactor.New(),
			Resolver: net.DefaultResolver,
		},
		Payload: []byte(options.Payload),
		Port:    port,
		Repeat:  options.Repeat,
		Stdout:  stdout,
	}
	outcomes := rnr.Run(context.Background())
	report(stdout, outcomes)
	if options.Repeat > 1 {
		summarize(stdout, outcomes)
	}
	if options.MetricsDump {
		if err := dumpMetrics(stdout); err != nil {
			return err
		}
	}
	if !anySucceeded(outcomes) {
		return errors.New("all connect attempts failed")
	}
	return nil
}

// newConfig loads the config file, if any, and then applies the flags
// that have been explicitly set on the command line.
func newConfig(cmd *cobra.Command, options *Options) (*connect.Config, error) {
	config := &connect.Config{Timeout: options.Timeout}
	if options.ConfigFile != "" {
		log.Debugf("reading config file from %s", options.ConfigFile)
		var err error
		if config, err = connect.LoadConfigFile(options.ConfigFile); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		config.Timeout = options.Timeout
	}
	if flags.Changed("proxy") {
		config.ProxyEndpoint = options.Proxy
	}
	if flags.Changed("tls") {
		config.TLSEnabled = options.TLS
	}
	if flags.Changed("ca-bundle-path") {
		config.CABundlePath = options.CABundlePath
	}
	if flags.Changed("allow-legacy-tls") {
		config.AllowLegacyTLS = options.AllowLegacyTLS
	}
	if flags.Changed("allow-dirty-tls-shutdown") {
		config.AllowDirtyTLSShutdown = options.AllowDirtyShutdown
	}
	if flags.Changed("sni") {
		config.TLSSNIHostname = options.SNI
	}
	if flags.Changed("alpn") {
		config.TLSALPN = options.ALPN
	}
	// validate the result of merging the flags
	return connect.ConfigFromMap(map[string]any{
		"timeout":                  config.Timeout,
		"proxy_endpoint":           config.ProxyEndpoint,
		"tls_enabled":              config.TLSEnabled,
		"ca_bundle_path":           config.CABundlePath,
		"allow_legacy_tls":         config.AllowLegacyTLS,
		"allow_dirty_tls_shutdown": config.AllowDirtyTLSShutdown,
		"tls_sni_hostname":         config.TLSSNIHostname,
		"tls_alpn":                 config.TLSALPN,
	})
}

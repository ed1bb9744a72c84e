package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/go-cmp/cmp"
	"github.com/ooni/mknet/internal/connect"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/testingx"
)

func newTestRunner(t *testing.T, endpoint string, payload []byte, repeat int, stdout *bytes.Buffer) *runner {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	number, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return &runner{
		Addresses: []string{host},
		Config:    &connect.Config{Timeout: 1},
		Hostname:  "www.example.com",
		Logger:    log.Log,
		Orchestrator: &connect.Orchestrator{
			Logger:  log.Log,
			Reactor: reactor.New(),
		},
		Payload: payload,
		Port:    number,
		Repeat:  repeat,
		Stdout:  stdout,
	}
}

func TestRunner(t *testing.T) {
	t.Run("with a payload", func(t *testing.T) {
		server := testingx.MustNewEchoServer()
		defer server.Close()
		stdout := &bytes.Buffer{}
		payload := []byte("Bonsoir, Elliot!\n")
		outcomes := newTestRunner(t, server.Endpoint(), payload, 1, stdout).Run(context.Background())
		if len(outcomes) != 1 {
			t.Fatal("expected one outcome")
		}
		if outcomes[0].Err != nil {
			t.Fatal(outcomes[0].Err)
		}
		// the echo server never closes, so we stop reading because of the idle timeout
		if outcomes[0].Received != len(payload) || outcomes[0].ReadErr == nil {
			t.Fatal("unexpected outcome", outcomes[0])
		}
		if diff := cmp.Diff(payload, stdout.Bytes()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with repeat and failures", func(t *testing.T) {
		stdout := &bytes.Buffer{}
		rnr := newTestRunner(t, testingx.MustNewRefusedEndpoint(), nil, 3, stdout)
		outcomes := rnr.Run(context.Background())
		if len(outcomes) != 3 {
			t.Fatal("expected three outcomes")
		}
		if anySucceeded(outcomes) {
			t.Fatal("expected failures")
		}
		for _, o := range outcomes {
			if _, found := connect.ResultFromError(o.Err); !found {
				t.Fatal("expected a ConnectError")
			}
		}
	})
}

func TestReport(t *testing.T) {
	outcomes := []*outcome{{
		Result: &model.ConnectResult{
			ID: "a",
			Attempts: []model.ConnectAttemptResult{{
				Address: "10.0.0.1",
				Port:    443,
				Err:     nil,
				Elapsed: 10 * time.Millisecond,
			}},
			ConnectTime: 10 * time.Millisecond,
		},
		Received: 128,
	}, {
		Result: &model.ConnectResult{
			ID:          "b",
			ConnectTime: 30 * time.Millisecond,
		},
	}, {
		Result: &model.ConnectResult{ID: "c"},
		Err:    context.Canceled,
	}}

	t.Run("report", func(t *testing.T) {
		w := &bytes.Buffer{}
		report(w, outcomes)
		for _, expect := range []string{"[a] connected in 10ms", "10.0.0.1:443 ok", "received 128 bytes", "[c] context canceled"} {
			if !strings.Contains(w.String(), expect) {
				t.Fatal("missing", expect, "in", w.String())
			}
		}
	})

	t.Run("summarize", func(t *testing.T) {
		w := &bytes.Buffer{}
		summarize(w, outcomes)
		for _, expect := range []string{"connects: 2 ok, 1 failed", "median 20ms", "p90 "} {
			if !strings.Contains(w.String(), expect) {
				t.Fatal("missing", expect, "in", w.String())
			}
		}
	})

	t.Run("summarize without successes", func(t *testing.T) {
		w := &bytes.Buffer{}
		summarize(w, outcomes[2:])
		if diff := cmp.Diff("connects: 0 ok, 1 failed\n", w.String()); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestDumpMetrics(t *testing.T) {
	server := testingx.MustNewEchoServer()
	defer server.Close()
	_ = newTestRunner(t, server.Endpoint(), nil, 1, &bytes.Buffer{}).Run(context.Background())
	w := &bytes.Buffer{}
	if err := dumpMetrics(w); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(w.String(), `mknet_connect_attempts_total{failure="ok"}`) {
		t.Fatal("missing attempts counter", w.String())
	}
}

func TestNewConfig(t *testing.T) {
	t.Run("flags override the config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{
	"timeout": 10, // seconds
	"tls_enabled": true,
	"tls_sni_hostname": "www.example.org",
}`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		var options Options
		cmd := newRootCommand(&options)
		if err := cmd.ParseFlags([]string{"-c", path, "--sni", "www.example.com", "--alpn", "h2"}); err != nil {
			t.Fatal(err)
		}
		config, err := newConfig(cmd, &options)
		if err != nil {
			t.Fatal(err)
		}
		expect := &connect.Config{
			Timeout:        10,
			TLSEnabled:     true,
			TLSSNIHostname: "www.example.com",
			TLSALPN:        []string{"h2"},
		}
		if diff := cmp.Diff(expect, config); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("without a config file", func(t *testing.T) {
		var options Options
		cmd := newRootCommand(&options)
		if err := cmd.ParseFlags([]string{"--proxy", "127.0.0.1:9050", "--tls"}); err != nil {
			t.Fatal(err)
		}
		config, err := newConfig(cmd, &options)
		if err != nil {
			t.Fatal(err)
		}
		expect := &connect.Config{
			Timeout:       connect.DefaultTimeout.Seconds(),
			ProxyEndpoint: "127.0.0.1:9050",
			TLSEnabled:    true,
		}
		if diff := cmp.Diff(expect, config); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with an invalid proxy", func(t *testing.T) {
		var options Options
		cmd := newRootCommand(&options)
		if err := cmd.ParseFlags([]string{"--proxy", "127.0.0.1"}); err != nil {
			t.Fatal(err)
		}
		if _, err := newConfig(cmd, &options); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestLogHandler(t *testing.T) {
	w := &bytes.Buffer{}
	handler := newLogHandler(w)
	err := handler.HandleLog(&log.Entry{
		Level:   log.WarnLevel,
		Message: "antani",
		Fields:  log.Fields{"addr": "10.0.0.1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(w.String(), "antani") || !strings.Contains(w.String(), "10.0.0.1") {
		t.Fatal("unexpected output", w.String())
	}
}

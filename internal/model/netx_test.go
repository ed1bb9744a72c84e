package model

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEndpointString(t *testing.T) {
	cases := []struct {
		name   string
		epnt   Endpoint
		expect string
	}{{
		name:   "with IPv4",
		epnt:   Endpoint{Hostname: "10.0.0.1", Port: 9999},
		expect: "10.0.0.1:9999",
	}, {
		name:   "with IPv6",
		epnt:   Endpoint{Hostname: "::1", Port: 443},
		expect: "[::1]:443",
	}, {
		name:   "with domain",
		epnt:   Endpoint{Hostname: "example.com", Port: 80},
		expect: "example.com:80",
	}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.epnt.String(); got != tc.expect {
				t.Fatal("expected", tc.expect, "got", got)
			}
		})
	}
}

func TestConnectResultErrors(t *testing.T) {
	refused := errors.New("connection_refused")
	cr := &ConnectResult{
		Attempts: []ConnectAttemptResult{{
			Address: "10.0.0.1",
			Err:     refused,
		}, {
			Address: "10.0.0.2",
			Err:     io.EOF,
		}, {
			Address: "10.0.0.3",
		}},
	}
	got := cr.Errors()
	expect := []error{refused, io.EOF}
	if diff := cmp.Diff(expect, got, cmp.Comparer(func(a, b error) bool {
		return a == b
	})); diff != "" {
		t.Fatal(diff)
	}
}

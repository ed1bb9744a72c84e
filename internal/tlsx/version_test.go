package tlsx

import (
	"crypto/tls"
	"testing"
)

func TestTLSVersionString(t *testing.T) {
	if v := TLSVersionString(tls.VersionTLS13); v != "TLSv1.3" {
		t.Fatal("unexpected TLS version", v)
	}
	if v := TLSVersionString(tls.VersionTLS10); v != "TLSv1" {
		t.Fatal("unexpected TLS version", v)
	}
	if v := TLSVersionString(0); v != "" {
		t.Fatal("unexpected TLS version", v)
	}
	if v := TLSVersionString(1); v != "TLS_VERSION_UNKNOWN_1" {
		t.Fatal("unexpected TLS version", v)
	}
}

func TestTLSCipherSuiteString(t *testing.T) {
	if v := TLSCipherSuiteString(tls.TLS_AES_128_GCM_SHA256); v != "TLS_AES_128_GCM_SHA256" {
		t.Fatal("unexpected cipher suite", v)
	}
	if v := TLSCipherSuiteString(0); v != "" {
		t.Fatal("unexpected cipher suite", v)
	}
	if v := TLSCipherSuiteString(0x0001); v != "0x0001" {
		t.Fatal("unexpected cipher suite", v)
	}
}

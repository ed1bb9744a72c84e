package connect

//
// Configuration
//

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ooni/mknet/internal/model"
	"github.com/tailscale/hujson"
)

// DefaultTimeout is the default value of the timeout key.
const DefaultTimeout = 30 * time.Second

// Config contains the settings of a connect operation.
type Config struct {
	// Timeout is the connect timeout of each attempt, in seconds, which
	// is also the idle timeout of the returned transport. When zero
	// or negative, we use DefaultTimeout.
	Timeout float64 `json:"timeout"`

	// ProxyEndpoint is the OPTIONAL SOCKS5 proxy endpoint (host:port).
	ProxyEndpoint string `json:"proxy_endpoint"`

	// TLSEnabled enables TLS.
	TLSEnabled bool `json:"tls_enabled"`

	// CABundlePath is the OPTIONAL CA bundle path. When empty, we
	// use the built-in CA bundle.
	CABundlePath string `json:"ca_bundle_path"`

	// AllowLegacyTLS enables TLS 1.0 and TLS 1.1.
	AllowLegacyTLS bool `json:"allow_legacy_tls"`

	// AllowDirtyTLSShutdown causes an EOF not preceded by the TLS
	// close_notify alert to be reported as a clean EOF.
	AllowDirtyTLSShutdown bool `json:"allow_dirty_tls_shutdown"`

	// TLSSNIHostname is the OPTIONAL SNI. When empty, we use the
	// hostname we're connecting to.
	TLSSNIHostname string `json:"tls_sni_hostname"`

	// TLSALPN contains the OPTIONAL ALPN protocols.
	TLSALPN []string `json:"tls_alpn"`
}

// TimeoutDuration returns the timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout * float64(time.Second))
}

// ErrInvalidConfig indicates that a configuration value is not valid.
var ErrInvalidConfig = errors.New("invalid config")

// ConfigFromMap creates a Config from a map. Each known key must have
// the expected type, while unknown keys are ignored.
func ConfigFromMap(m map[string]any) (*Config, error) {
	config := &Config{}
	for key, value := range m {
		var err error
		switch key {
		case "timeout":
			config.Timeout, err = floatValue(value)
		case "proxy_endpoint":
			config.ProxyEndpoint, err = stringValue(value)
		case "tls_enabled":
			config.TLSEnabled, err = boolValue(value)
		case "ca_bundle_path":
			config.CABundlePath, err = stringValue(value)
		case "allow_legacy_tls":
			config.AllowLegacyTLS, err = boolValue(value)
		case "allow_dirty_tls_shutdown":
			config.AllowDirtyTLSShutdown, err = boolValue(value)
		case "tls_sni_hostname":
			config.TLSSNIHostname, err = stringValue(value)
		case "tls_alpn":
			config.TLSALPN, err = stringSliceValue(value)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func floatValue(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

func stringValue(value any) (string, error) {
	if v, good := value.(string); good {
		return v, nil
	}
	return "", fmt.Errorf("expected a string, got %T", value)
}

func boolValue(value any) (bool, error) {
	if v, good := value.(bool); good {
		return v, nil
	}
	return false, fmt.Errorf("expected a bool, got %T", value)
}

func stringSliceValue(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			s, err := stringValue(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", value)
	}
}

// LoadConfigFile reads a Config from a JSON file that may contain
// comments and trailing commas. Unknown keys are an error.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	value, err := hujson.Parse(data)
	if err != nil {
		return nil, err
	}
	value.Standardize()
	decoder := json.NewDecoder(bytes.NewReader(value.Pack()))
	decoder.DisallowUnknownFields()
	config := &Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks the values that we can check before connecting.
func (c *Config) validate() error {
	if c.ProxyEndpoint != "" {
		if _, err := parseEndpoint(c.ProxyEndpoint); err != nil {
			return fmt.Errorf("%w: proxy_endpoint: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// errInvalidPort means that the port is not a number in [0, 65535].
var errInvalidPort = errors.New("invalid port")

// parseEndpoint parses a host:port endpoint.
func parseEndpoint(address string) (model.Endpoint, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return model.Endpoint{}, err
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 0 || number > 65535 {
		return model.Endpoint{}, errInvalidPort
	}
	return model.Endpoint{Hostname: host, Port: number}, nil
}

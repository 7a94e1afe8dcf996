package session

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateEndpoint reports whether s has the form protocol/host:port.
//
// The protocol is lowercase letters and digits. The host is non-empty and
// contains no slash or whitespace. The port is a decimal number in 1..65535.
func ValidateEndpoint(s string) bool {
	protocol, addr, ok := strings.Cut(s, "/")
	if !ok || protocol == "" {
		return false
	}
	for _, r := range protocol {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}

	i := strings.LastIndexByte(addr, ':')
	if i <= 0 {
		return false
	}
	host, port := addr[:i], addr[i+1:]
	if strings.ContainsAny(host, "/ \t\r\n") {
		return false
	}
	if port == "" || strings.TrimLeft(port, "0123456789") != "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return false
	}
	return true
}

// BuildConfig assembles a session configuration. An endpoint that fails
// ValidateEndpoint is logged and left out, never forwarded.
func BuildConfig(mode Mode, endpoint string, logger Logger) Config {
	if logger == nil {
		logger = noopLogger{}
	}
	cfg := Config{Mode: mode}

	switch {
	case endpoint == "":
		logger.Info("no connect endpoint configured, using transport default", "mode", mode.String())
	case ValidateEndpoint(endpoint):
		cfg.Connect = endpoint
	default:
		logger.Warn("ignoring invalid connect endpoint", "endpoint", endpoint, "want", "protocol/host:port")
	}
	return cfg
}

// BrokerURL maps an endpoint to a broker URL:
//
//	tcp/h:p => tcp://h:p
//	tls/h:p => ssl://h:p
//	ws/h:p  => ws://h:p
func BrokerURL(endpoint string) (string, error) {
	if !ValidateEndpoint(endpoint) {
		return "", fmt.Errorf("%w: %q is not protocol/host:port", ErrUnsupportedProtocol, endpoint)
	}
	protocol, addr, _ := strings.Cut(endpoint, "/")

	var scheme string
	switch protocol {
	case "tcp":
		scheme = "tcp"
	case "tls":
		scheme = "ssl"
	case "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, protocol)
	}
	return scheme + "://" + addr, nil
}

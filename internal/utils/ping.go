package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// pingTimeout bounds every dependency ping made by the health check
const pingTimeout = 1500 * time.Millisecond

var schemePorts = map[string]string{
	"http":  "80",
	"https": "443",
	"redis": "6379",
}

// DialTarget opens and closes one TCP connection to target, which is either a URL or a bare host:port
func DialTarget(ctx context.Context, target string, timeout time.Duration) error {
	address, err := address(target)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	return conn.Close()
}

func address(target string) (string, error) {
	if !strings.Contains(target, "://") {
		if _, _, err := net.SplitHostPort(target); err != nil {
			return "", fmt.Errorf("invalid address %q: %w", target, err)
		}
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid URL %q: no host", target)
	}
	port := u.Port()
	if port == "" {
		if port = schemePorts[u.Scheme]; port == "" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// PingAuthorizer checks the authorizer service accepts connections
func PingAuthorizer(ctx context.Context, authzURL string) error {
	return DialTarget(ctx, authzURL, pingTimeout)
}

// PingObjectStore checks the S3 endpoint (host:port, no scheme) accepts connections
func PingObjectStore(ctx context.Context, endpoint string) error {
	return DialTarget(ctx, endpoint, pingTimeout)
}

package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// PingService checks that a TCP connection can be opened to the service URL
func PingService(ctx context.Context, serviceURL string, timeout time.Duration) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return fmt.Errorf("invalid URL %q: no host", serviceURL)
	}

	port := parsedURL.Port()
	if port == "" {
		port = "80"
		if parsedURL.Scheme == "https" {
			port = "443"
		}
	}
	address := net.JoinHostPort(parsedURL.Hostname(), port)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	return nil
}

// AuthorizerPingTimeout bounds a single Authorizer reachability check
const AuthorizerPingTimeout = 1500 * time.Millisecond

// PingAuthorizer checks if the Authorizer service is reachable
func PingAuthorizer(ctx context.Context, authzURL string) error {
	return PingService(ctx, authzURL, AuthorizerPingTimeout)
}

// Package sslexp inspects TLS certificate expiry for monitored hosts.
package sslexp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultPort is assumed when the target has no explicit port.
const DefaultPort = "443"

// Result describes the leaf certificate presented by a host.
type Result struct {
	Host      string    `json:"host"`
	Issuer    string    `json:"issuer"`
	Subject   string    `json:"subject"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	DaysLeft  int       `json:"days_left"`
	Expired   bool      `json:"expired"`
}

// Check connects to host (host or host:port) and reads its certificate.
// Chain verification is skipped on purpose: an invalid chain still has an
// expiry date worth reporting.
func Check(ctx context.Context, host string, timeout time.Duration) (Result, error) {
	target := host
	if !strings.Contains(target, ":") {
		target = net.JoinHostPort(target, DefaultPort)
	}
	serverName, _, err := net.SplitHostPort(target)
	if err != nil {
		return Result{}, fmt.Errorf("invalid target %q: %w", host, err)
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: true,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Result{}, fmt.Errorf("no certificate presented by %s", target)
	}
	leaf := certs[0]

	now := time.Now()
	return Result{
		Host:      host,
		Issuer:    leaf.Issuer.CommonName,
		Subject:   leaf.Subject.CommonName,
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
		DaysLeft:  int(time.Until(leaf.NotAfter).Hours() / 24),
		Expired:   now.After(leaf.NotAfter),
	}, nil
}

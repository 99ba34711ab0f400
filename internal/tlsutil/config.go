// Package tlsutil builds the *tls.Config the HTTPS listener hands to
// crypto/tls when wrapping an accepted connection.
//
// Grounded on the fluent Config builder in
// MiraiMindz-watt/shockwave/pkg/shockwave/tls/config.go; trimmed to manual
// certificate loading only (no ACME/auto-cert manager, since certificate
// rotation is an explicit non-goal) and widened to the version range the
// HTTPS listener is required to accept.
package tlsutil

import (
	"crypto/tls"
	"fmt"
)

// Config configures manual certificate loading for the HTTPS listener.
type Config struct {
	CertFile string
	KeyFile  string
}

// NewConfig returns a Config pointed at the given PEM cert/key pair.
func NewConfig(certFile, keyFile string) *Config {
	return &Config{CertFile: certFile, KeyFile: keyFile}
}

// Build loads the certificate pair and returns a server-side *tls.Config
// constrained to TLS 1.1 through TLS 1.3.
func (c *Config) Build() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load cert/key: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS11,
		MaxVersion:   tls.VersionTLS13,
	}, nil
}

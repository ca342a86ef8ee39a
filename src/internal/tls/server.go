// FILE: muxd/src/internal/tls/server.go

// Package tls builds server TLS configuration from listener settings.
package tls

import (
	"crypto/tls"
	"fmt"
	"strings"

	"muxd/src/internal/config"

	"github.com/spf13/cast"
)

// Options is the TLS part of a listener's settings
type Options struct {
	CertFile   string
	Method     string
	Ciphers    string
	VerifyPeer bool
}

// FromSettings extracts the ssl_* settings; ok is false when ssl_cert_file is not set
func FromSettings(s config.Settings) (opts *Options, ok bool) {
	cert := strings.TrimSpace(cast.ToString(s[config.KeySSLCertFile]))
	if cert == "" {
		return nil, false
	}
	return &Options{
		CertFile:   cert,
		Method:     cast.ToString(s[config.KeySSLMethod]),
		Ciphers:    cast.ToString(s[config.KeySSLCiphers]),
		VerifyPeer: cast.ToBool(s[config.KeySSLVerifyPeer]),
	}, true
}

// ServerConfig loads the certificate and key from CertFile.
// ssl_method sets the lowest accepted version; TLS 1.3 is always allowed.
func (o *Options) ServerConfig() (*tls.Config, error) {
	// Both PEM blocks live in the same file
	cert, err := tls.LoadX509KeyPair(o.CertFile, o.CertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", o.CertFile, err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseMethod(o.Method, tls.VersionTLS12),
		MaxVersion:   tls.VersionTLS13,
		NextProtos:   []string{"http/1.1"},
	}

	if o.Ciphers != "" {
		suites, err := parseCipherSuites(o.Ciphers)
		if err != nil {
			return nil, err
		}
		cfg.CipherSuites = suites
	}

	if o.VerifyPeer {
		// Client certificates are checked against the system roots
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return cfg, nil
}

// Describe summarizes the configuration for logs
func Describe(cfg *tls.Config) map[string]any {
	if cfg == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":       true,
		"min_version":   tlsVersionString(cfg.MinVersion),
		"max_version":   tlsVersionString(cfg.MaxVersion),
		"client_auth":   cfg.ClientAuth == tls.RequireAndVerifyClientCert,
		"cipher_suites": len(cfg.CipherSuites),
	}
}

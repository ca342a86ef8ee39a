// FILE: muxd/src/internal/tls/tls_test.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"muxd/src/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSigned(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.pem")
	require.NoError(t, GenerateSelfSigned(path, CertRequest{CommonName: "localhost", Hosts: "localhost,127.0.0.1"}))
	return path
}

func TestFromSettings(t *testing.T) {
	_, ok := FromSettings(config.Settings{"worker_num": 2})
	assert.False(t, ok)

	_, ok = FromSettings(config.Settings{config.KeySSLCertFile: "  "})
	assert.False(t, ok)

	opts, ok := FromSettings(config.Settings{
		config.KeySSLCertFile:   "/etc/muxd/server.pem",
		config.KeySSLMethod:     "TLSv1_3_METHOD",
		config.KeySSLVerifyPeer: "true",
	})
	require.True(t, ok)
	assert.Equal(t, "/etc/muxd/server.pem", opts.CertFile)
	assert.Equal(t, "TLSv1_3_METHOD", opts.Method)
	assert.True(t, opts.VerifyPeer)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		method string
		want   uint16
	}{
		{"TLSv1_2_METHOD", tls.VersionTLS12},
		{"TLSv1_1_SERVER_METHOD", tls.VersionTLS11},
		{"tlsv1.3", tls.VersionTLS13},
		{"TLS1.0", tls.VersionTLS10},
		{"SSLv23_METHOD", tls.VersionTLS12},
		{"", tls.VersionTLS12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseMethod(tt.method, tls.VersionTLS12), tt.method)
	}
	assert.Equal(t, "TLS1.3", tlsVersionString(tls.VersionTLS13))
	assert.Equal(t, "0x0300", tlsVersionString(0x0300))
}

func TestParseCipherSuites(t *testing.T) {
	suites, err := parseCipherSuites("ECDHE-RSA-AES128-GCM-SHA256:TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384")
	require.NoError(t, err)
	assert.Equal(t, []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	}, suites)

	_, err = parseCipherSuites("RC4-MD5, NOPE")
	assert.ErrorContains(t, err, "RC4-MD5")

	_, err = parseCipherSuites(" : , ")
	assert.Error(t, err)
}

func TestGenerateSelfSigned(t *testing.T) {
	path := selfSigned(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	block, rest := pem.Decode(data)
	require.NotNil(t, block)
	assert.Equal(t, "CERTIFICATE", block.Type)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cert.Subject.CommonName)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())

	key, _ := pem.Decode(rest)
	require.NotNil(t, key)
	assert.Equal(t, "RSA PRIVATE KEY", key.Type)

	assert.Error(t, GenerateSelfSigned(path, CertRequest{}))
	assert.Error(t, GenerateSelfSigned(path, CertRequest{CommonName: "x", Bits: 1024}))
}

func TestServerConfig(t *testing.T) {
	path := selfSigned(t)

	opts := &Options{CertFile: path, Method: "TLSv1_3_METHOD", VerifyPeer: true}
	cfg, err := opts.ServerConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)

	desc := Describe(cfg)
	assert.Equal(t, true, desc["enabled"])
	assert.Equal(t, "TLS1.3", desc["min_version"])
	assert.Equal(t, map[string]any{"enabled": false}, Describe(nil))

	_, err = (&Options{CertFile: path, Ciphers: "BOGUS"}).ServerConfig()
	assert.Error(t, err)

	_, err = (&Options{CertFile: filepath.Join(t.TempDir(), "missing.pem")}).ServerConfig()
	assert.Error(t, err)
}

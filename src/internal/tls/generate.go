// FILE: muxd/src/internal/tls/generate.go
package tls

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"
)

// CertRequest describes a self-signed server certificate
type CertRequest struct {
	CommonName string
	// Comma-separated DNS names and IPs
	Hosts string
	Days  int
	Bits  int
}

// GenerateSelfSigned writes a certificate and its RSA key into one PEM file at path,
// the layout ssl_cert_file expects
func GenerateSelfSigned(path string, req CertRequest) error {
	if req.CommonName == "" {
		return fmt.Errorf("common name is required")
	}
	if req.Days <= 0 {
		req.Days = 365
	}
	if req.Bits == 0 {
		req.Bits = 2048
	}
	if req.Bits != 2048 && req.Bits != 3072 && req.Bits != 4096 {
		return fmt.Errorf("invalid key size: %d (valid: 2048, 3072, 4096)", req.Bits)
	}

	priv, err := rsa.GenerateKey(rand.Reader, req.Bits)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	dnsNames, ipAddrs := parseHosts(req.Hosts)
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   req.CommonName,
			Organization: []string{"muxd"},
		},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.AddDate(0, 0, req.Days),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    dnsNames,
		IPAddresses: ipAddrs,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	_ = pem.Encode(&buf, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	// Holds the private key
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func parseHosts(hostList string) ([]string, []net.IP) {
	var dnsNames []string
	var ipAddrs []net.IP

	for _, h := range strings.Split(hostList, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			ipAddrs = append(ipAddrs, ip)
		} else {
			dnsNames = append(dnsNames, h)
		}
	}

	return dnsNames, ipAddrs
}

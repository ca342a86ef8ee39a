// FILE: muxd/src/internal/tls/parse.go
package tls

import (
	"crypto/tls"
	"fmt"
	"strings"
)

var methodNormalizer = strings.NewReplacer(
	"_SERVER_METHOD", "",
	"_CLIENT_METHOD", "",
	"_METHOD", "",
	"TLSV", "TLS",
	"_", ".",
)

// parseMethod maps ssl_method names such as "TLSv1_2_METHOD", "TLSv1.3" or "TLS1.2"
// to a version constant. Generic and unknown methods yield def.
func parseMethod(method string, def uint16) uint16 {
	switch methodNormalizer.Replace(strings.ToUpper(strings.TrimSpace(method))) {
	case "TLS1", "TLS1.0", "TLS10":
		return tls.VersionTLS10
	case "TLS1.1", "TLS11":
		return tls.VersionTLS11
	case "TLS1.2", "TLS12":
		return tls.VersionTLS12
	case "TLS1.3", "TLS13":
		return tls.VersionTLS13
	default:
		return def
	}
}

// opensslNames covers the OpenSSL spellings commonly found in ssl_ciphers
var opensslNames = map[string]string{
	"ECDHE-ECDSA-AES128-GCM-SHA256": "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-RSA-AES128-GCM-SHA256":   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-ECDSA-AES256-GCM-SHA384": "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-RSA-AES256-GCM-SHA384":   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-ECDSA-CHACHA20-POLY1305": "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"ECDHE-RSA-CHACHA20-POLY1305":   "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	"AES128-GCM-SHA256":             "TLS_RSA_WITH_AES_128_GCM_SHA256",
	"AES256-GCM-SHA384":             "TLS_RSA_WITH_AES_256_GCM_SHA384",
}

// parseCipherSuites reads a ':' or ',' separated list of Go or OpenSSL suite names
func parseCipherSuites(list string) ([]uint16, error) {
	ids := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		ids[s.Name] = s.ID
	}
	for _, s := range tls.InsecureCipherSuites() {
		ids[s.Name] = s.ID
	}

	var result, unknown []string
	var suites []uint16
	for _, name := range strings.FieldsFunc(list, func(r rune) bool { return r == ':' || r == ',' }) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		goName := name
		if alias, ok := opensslNames[name]; ok {
			goName = alias
		}
		if id, ok := ids[goName]; ok {
			suites = append(suites, id)
			result = append(result, goName)
			continue
		}
		unknown = append(unknown, name)
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown ssl_ciphers: %s", strings.Join(unknown, ", "))
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("ssl_ciphers names no cipher suite")
	}
	return suites, nil
}

// tlsVersionString converts a crypto/tls version constant back into a string representation.
func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("0x%04x", version)
	}
}

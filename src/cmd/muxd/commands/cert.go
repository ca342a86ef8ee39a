// FILE: muxd/src/cmd/muxd/commands/cert.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"strings"

	mtls "muxd/src/internal/tls"
)

// CertCommand writes a self-signed certificate usable as ssl_cert_file
type CertCommand struct {
	out io.Writer
}

func NewCertCommand(out io.Writer) *CertCommand {
	return &CertCommand{out: out}
}

func (c *CertCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("cert", flag.ContinueOnError)
	cmd.SetOutput(c.out)

	var (
		commonName = cmd.String("cn", "", "Common name (required)")
		hosts      = cmd.String("hosts", "", "Comma-separated hostnames/IPs")
		days       = cmd.Int("days", 365, "Validity period in days")
		bits       = cmd.Int("bits", 2048, "RSA key size")
		outFile    = cmd.String("out", "muxd.pem", "Output PEM file")
	)
	cmd.Usage = func() { fmt.Fprint(c.out, c.Help()) }

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	req := mtls.CertRequest{
		CommonName: *commonName,
		Hosts:      coalesceString(*hosts, *commonName),
		Days:       *days,
		Bits:       *bits,
	}
	if err := mtls.GenerateSelfSigned(*outFile, req); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Wrote self-signed certificate for %s to %s\n", req.CommonName, *outFile)
	fmt.Fprintf(c.out, "Set ssl_cert_file = %q on an http or websocket listener to use it\n", *outFile)
	return nil
}

func (c *CertCommand) Description() string {
	return "Generate a self-signed TLS certificate"
}

func (c *CertCommand) Help() string {
	return `Cert Command - Generate a self-signed TLS certificate

Writes the certificate and its private key into one PEM file,
the format expected by the ssl_cert_file listener setting.

Usage:
  muxd cert -cn <name> [options]

Options:
  -cn <name>         Common name (required)
  -hosts <list>      Comma-separated hostnames/IPs (default: the common name)
  -days <n>          Validity period in days (default: 365)
  -bits <n>          RSA key size: 2048, 3072 or 4096 (default: 2048)
  -out <path>        Output file (default: muxd.pem)

Examples:
  muxd cert -cn localhost -hosts localhost,127.0.0.1 -out /etc/muxd/server.pem
`
}

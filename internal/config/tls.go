package config

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"

	"k8s.io/utils/env"
)

const (
	tlsVersion12 = "1.2"
	tlsVersion13 = "1.3"
)

type TLSVersion uint16

var _ flag.Value = (*TLSVersion)(nil)

func (v *TLSVersion) String() string {
	if uint16(*v) == tls.VersionTLS13 {
		return tlsVersion13
	}
	return tlsVersion12
}

func (v *TLSVersion) Set(s string) error {
	switch s {
	case tlsVersion12:
		*v = TLSVersion(tls.VersionTLS12)
	case tlsVersion13:
		*v = TLSVersion(tls.VersionTLS13)
	default:
		return fmt.Errorf("unsupported TLS version %q: must be %s or %s", s, tlsVersion12, tlsVersion13)
	}
	return nil
}

func (v *TLSVersion) UnmarshalText(b []byte) error {
	return v.Set(string(b))
}

func (v *TLSVersion) Value() uint16 {
	return uint16(*v)
}

// TLSConfig holds the serving certificate settings.
type TLSConfig struct {
	Cert       string     `yaml:"cert"`       // Path to TLS certificate
	Key        string     `yaml:"key"`        // Path to TLS private key
	MinVersion TLSVersion `yaml:"minVersion"` // Minimum TLS version
	SelfSigned bool       `yaml:"selfSigned"` // Generate a certificate when none is provided
}

// HasCerts reports whether certificate files were configured.
func (t *TLSConfig) HasCerts() bool {
	return t.Cert != "" && t.Key != ""
}

// Enabled reports whether the gateway should serve TLS.
func (t *TLSConfig) Enabled() bool {
	return t.HasCerts() || t.SelfSigned
}

func defaultTLSConfig() TLSConfig {
	return TLSConfig{MinVersion: TLSVersion(tls.VersionTLS12)}
}

func (t *TLSConfig) loadEnv() error {
	t.Cert = env.GetString("TLS_CERT", t.Cert)
	t.Key = env.GetString("TLS_KEY", t.Key)
	selfSigned, err := env.GetBool("TLS_SELF_SIGNED", t.SelfSigned)
	if err != nil {
		return fmt.Errorf("invalid TLS_SELF_SIGNED: %w", err)
	}
	t.SelfSigned = selfSigned
	if v := env.GetString("TLS_MIN_VERSION", ""); v != "" {
		return t.MinVersion.Set(v)
	}
	return nil
}

func (t *TLSConfig) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&t.Cert, "tls-cert", t.Cert, "Path to TLS certificate")
	fs.StringVar(&t.Key, "tls-key", t.Key, "Path to TLS private key")
	fs.BoolVar(&t.SelfSigned, "tls-self-signed", t.SelfSigned, "Serve TLS with a generated self-signed certificate (development only)")
	fs.Var(&t.MinVersion, "tls-min-version", "Minimum TLS version: 1.2 or 1.3 (default: 1.2)")
}

func (t *TLSConfig) validate() error {
	if (t.Cert != "" && t.Key == "") || (t.Cert == "" && t.Key != "") {
		return errors.New("--tls-cert and --tls-key must both be provided together")
	}
	return nil
}

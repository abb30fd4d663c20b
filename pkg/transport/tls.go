package transport

import (
	"crypto/tls"
)

// ALPNProtocol is the ALPN protocol identifier for Pulse.
const ALPNProtocol = "pulse/1"

// NewClientTLSConfig normalizes a caller-supplied TLS config for
// client-side use: TLS 1.3 minimum and the Pulse ALPN identifier.
// The input is cloned, never mutated.
func NewClientTLSConfig(base *tls.Config) *tls.Config {
	conf := base.Clone()
	conf.MinVersion = tls.VersionTLS13
	conf.NextProtos = []string{ALPNProtocol}
	return conf
}

// NewServerTLSConfig normalizes a caller-supplied TLS config for
// server-side use: TLS 1.3 minimum and the Pulse ALPN identifier.
// The input is cloned, never mutated.
func NewServerTLSConfig(base *tls.Config) *tls.Config {
	conf := base.Clone()
	conf.MinVersion = tls.VersionTLS13
	conf.NextProtos = []string{ALPNProtocol}
	return conf
}

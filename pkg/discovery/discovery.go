package discovery

import (
	"errors"
)

// mDNS service parameters for Pulse brokers.
const (
	// ServiceType is the mDNS service type brokers register under.
	ServiceType = "_pulse._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// TXTVersion is the advertised protocol version.
	TXTVersion = "1"

	// MaxInstanceNameLen caps mDNS instance names.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	// ErrNotFound indicates no matching broker was discovered.
	ErrNotFound = errors.New("broker not found")

	// ErrMissingRequired indicates required broker info is missing.
	ErrMissingRequired = errors.New("missing required broker info")
)

// BrokerInfo describes a broker being advertised.
type BrokerInfo struct {
	// Name is the human-readable broker name; it becomes the mDNS
	// instance name.
	Name string

	// Port the broker listens on.
	Port uint16

	// Codec is the payload codec the broker's clients default to
	// ("json", "cbor"). Optional.
	Codec string

	// TLS indicates whether the broker requires TLS.
	TLS bool
}

// BrokerService is a broker discovered on the network.
type BrokerService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port the broker listens on.
	Port uint16

	// Addresses are the resolved IP addresses, IPv4 first.
	Addresses []string

	// Version is the advertised protocol version.
	Version string

	// Codec is the advertised default payload codec.
	Codec string

	// TLS indicates whether the broker requires TLS.
	TLS bool
}

// Endpoint returns the first address and the port, suitable for a
// client Connect call. Falls back to the hostname when no address
// was resolved.
func (s *BrokerService) Endpoint() (host string, port int) {
	if len(s.Addresses) > 0 {
		return s.Addresses[0], int(s.Port)
	}
	return s.Host, int(s.Port)
}

package discovery

import (
	"fmt"
	"strings"
)

// TXT record keys.
const (
	txtKeyVersion = "v"
	txtKeyCodec   = "codec"
	txtKeyTLS     = "tls"
)

// encodeTXT builds the TXT strings for a broker advertisement.
func encodeTXT(info *BrokerInfo) []string {
	txt := []string{
		fmt.Sprintf("%s=%s", txtKeyVersion, TXTVersion),
	}
	if info.Codec != "" {
		txt = append(txt, fmt.Sprintf("%s=%s", txtKeyCodec, info.Codec))
	}
	if info.TLS {
		txt = append(txt, txtKeyTLS+"=1")
	}
	return txt
}

// decodeTXT parses TXT strings into a partially-filled service.
// Unknown keys are ignored; a missing version record is an error so
// non-Pulse services sharing the type are skipped.
func decodeTXT(txt []string, svc *BrokerService) error {
	for _, record := range txt {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		switch key {
		case txtKeyVersion:
			svc.Version = value
		case txtKeyCodec:
			svc.Codec = value
		case txtKeyTLS:
			svc.TLS = value == "1" || value == "true"
		}
	}
	if svc.Version == "" {
		return ErrMissingRequired
	}
	return nil
}

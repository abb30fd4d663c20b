// Package payload defines the application payload codec used at the
// publish boundary. Payload bytes are opaque to the wire protocol;
// this package is the single place where they are interpreted.
package payload

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
)

// Codec serializes application message bodies.
type Codec interface {
	// Name identifies the codec ("json", "cbor").
	Name() string

	// Marshal encodes a value to payload bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes payload bytes into a value.
	Unmarshal(data []byte, v any) error
}

// JSON is the default payload codec.
type JSON struct{}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Marshal encodes a value as JSON.
func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON payload bytes.
func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// cborEncMode is the CBOR encoder mode for payloads.
var cborEncMode cbor.EncMode

// cborDecMode is the CBOR decoder mode for payloads.
var cborDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	cborDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// CBOR is a compact binary payload codec.
type CBOR struct{}

// Name returns "cbor".
func (CBOR) Name() string { return "cbor" }

// Marshal encodes a value as CBOR.
func (CBOR) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes CBOR payload bytes.
func (CBOR) Unmarshal(data []byte, v any) error {
	return cborDecMode.Unmarshal(data, v)
}

// ByName returns the codec registered under the given name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("unknown payload codec: %q", name)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Codec = JSON{}
	_ Codec = CBOR{}
)

package artifacts

import (
	"encoding/base64"
	"fmt"
)

type payloadKind int

const (
	payloadBytes payloadKind = iota
	payloadEncodedText
)

// Payload is a diagnostic snapshot body: either raw bytes or a
// base64-encoded string. Decoding happens exactly once, at the store
// boundary.
type Payload struct {
	kind payloadKind
	raw  []byte
	text string
}

// Bytes wraps raw snapshot bytes.
func Bytes(b []byte) Payload {
	return Payload{kind: payloadBytes, raw: b}
}

// EncodedText wraps a base64-encoded snapshot string.
func EncodedText(s string) Payload {
	return Payload{kind: payloadEncodedText, text: s}
}

// Decode returns the raw snapshot bytes.
func (p Payload) Decode() ([]byte, error) {
	switch p.kind {
	case payloadBytes:
		return p.raw, nil
	case payloadEncodedText:
		b, err := base64.StdEncoding.DecodeString(p.text)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot payload: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %d", p.kind)
	}
}

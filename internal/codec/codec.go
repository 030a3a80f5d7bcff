// Package codec provides the URL-safe base64 and ECDSA signature conversions
// shared by the VAPID signer and the push message encryptor.
package codec

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformedSignature is returned when a DER signature cannot be parsed.
var ErrMalformedSignature = errors.New("codec: malformed DER signature")

// Base64URLEncode encodes to URL-safe base64 without padding, the alphabet
// used throughout the Web Push protocol.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLDecode reverses Base64URLEncode. Trailing padding is tolerated
// since some clients deliver padded keys.
func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// DERToRaw converts a DER-encoded ECDSA signature
// (0x30 len 0x02 rlen r 0x02 slen s) into the fixed 64-byte r||s form
// required by the push-service JWT encoding. A 64-byte input is assumed to
// already be raw and is returned unchanged.
func DERToRaw(der []byte) ([]byte, error) {
	if len(der) == 64 {
		out := make([]byte, 64)
		copy(out, der)
		return out, nil
	}
	if len(der) < 8 || der[0] != 0x30 {
		return nil, ErrMalformedSignature
	}
	r, pos, err := readDERInt(der, 2)
	if err != nil {
		return nil, err
	}
	s, _, err := readDERInt(der, pos)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	padInto(out[:32], r)
	padInto(out[32:], s)
	return out, nil
}

func readDERInt(b []byte, pos int) ([]byte, int, error) {
	if pos+2 > len(b) || b[pos] != 0x02 {
		return nil, 0, ErrMalformedSignature
	}
	n := int(b[pos+1])
	pos += 2
	if n == 0 || pos+n > len(b) {
		return nil, 0, ErrMalformedSignature
	}
	return b[pos : pos+n], pos + n, nil
}

// padInto right-aligns v into dst. A value longer than dst carries DER
// sign-padding bytes on the left, which are truncated rather than rejected.
func padInto(dst, v []byte) {
	if len(v) > len(dst) {
		v = v[len(v)-len(dst):]
	}
	copy(dst[len(dst)-len(v):], v)
}

package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64URLRoundTrip(t *testing.T) {
	for n := 0; n <= 256; n++ {
		b := make([]byte, n)
		_, err := rand.Read(b)
		require.NoError(t, err)

		got, err := Base64URLDecode(Base64URLEncode(b))
		require.NoError(t, err, "length %d", n)
		require.True(t, bytes.Equal(b, got), "length %d", n)
	}
}

func TestBase64URLEncodeAlphabet(t *testing.T) {
	// 0xfb 0xff forces '+'/'/' in standard base64; the URL-safe form must not
	// contain them, nor any padding.
	s := Base64URLEncode([]byte{0xfb, 0xef, 0xff})
	assert.NotContains(t, s, "+")
	assert.NotContains(t, s, "/")
	assert.NotContains(t, s, "=")
}

func TestBase64URLDecodeAcceptsPadding(t *testing.T) {
	got, err := Base64URLDecode("AQ==")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)
}

func TestBase64URLDecodeMalformed(t *testing.T) {
	_, err := Base64URLDecode("not*valid*base64")
	assert.Error(t, err)

	_, err = Base64URLDecode("A")
	assert.Error(t, err)
}

func TestDERToRawAlreadyRaw(t *testing.T) {
	raw := make([]byte, 64)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	got, err := DERToRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

// buildDER encodes r and s exactly as given, without normalizing lengths.
func buildDER(r, s []byte) []byte {
	body := []byte{0x02, byte(len(r))}
	body = append(body, r...)
	body = append(body, 0x02, byte(len(s)))
	body = append(body, s...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestDERToRawPadsShortIntegers(t *testing.T) {
	// r and s shorter than 32 bytes must be left-zero-padded into their field.
	r := bytes.Repeat([]byte{0xaa}, 30)
	s := bytes.Repeat([]byte{0xbb}, 31)

	got, err := DERToRaw(buildDER(r, s))
	require.NoError(t, err)
	require.Len(t, got, 64)

	assert.Equal(t, []byte{0, 0}, got[:2])
	assert.Equal(t, r, got[2:32])
	assert.Equal(t, []byte{0}, got[32:33])
	assert.Equal(t, s, got[33:])
}

func TestDERToRawTruncatesSignByte(t *testing.T) {
	// A 33-byte integer carries a leading zero from two's-complement sign
	// padding; it is truncated from the left, not rejected.
	r := append([]byte{0x00}, bytes.Repeat([]byte{0xcc}, 32)...)
	s := bytes.Repeat([]byte{0xdd}, 32)

	got, err := DERToRaw(buildDER(r, s))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xcc}, 32), got[:32])
	assert.Equal(t, s, got[32:])
}

func TestDERToRawMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":            nil,
		"not a sequence":   bytes.Repeat([]byte{0x01}, 16),
		"truncated r":      {0x30, 0x06, 0x02, 0x20, 0x01, 0x02},
		"missing s marker": {0x30, 0x08, 0x02, 0x02, 0x01, 0x02, 0x03, 0x02, 0x00, 0x00},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DERToRaw(in)
			assert.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}

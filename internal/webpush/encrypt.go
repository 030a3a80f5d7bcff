// Package webpush implements the RFC 8291 message encryption used by the Web
// Push protocol, content encoding aes128gcm.
package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltLen      = 16
	publicKeyLen = 65 // uncompressed P-256 point: 0x04 || X || Y
	authLen      = 16
	recordSize   = 4096
)

// ErrInvalidSubscriberKeys is returned when the subscription's p256dh or auth
// material is not usable.
var ErrInvalidSubscriberKeys = errors.New("webpush: invalid subscriber keys")

// Encrypt seals plaintext for a subscriber. p256dh is the subscriber's
// 65-byte uncompressed public point and auth its 16-byte secret, both already
// base64url-decoded. The output is the complete request body: the aes128gcm
// header (salt, record size, ephemeral public key) followed by a single
// ciphertext record.
//
// The salt and the ephemeral ECDH keypair are fresh on every call. Two
// encryptions of identical input therefore never produce the same bytes;
// reuse would let an observer correlate messages to the same subscriber.
func Encrypt(plaintext, p256dh, auth []byte) ([]byte, error) {
	if len(p256dh) != publicKeyLen || p256dh[0] != 0x04 {
		return nil, fmt.Errorf("%w: p256dh must be a %d-byte uncompressed point", ErrInvalidSubscriberKeys, publicKeyLen)
	}
	if len(auth) != authLen {
		return nil, fmt.Errorf("%w: auth must be %d bytes", ErrInvalidSubscriberKeys, authLen)
	}

	curve := ecdh.P256()
	subscriber, err := curve.NewPublicKey(p256dh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubscriberKeys, err)
	}

	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	return encrypt(plaintext, p256dh, auth, ephemeral, subscriber, salt)
}

func encrypt(plaintext, p256dh, auth []byte, ephemeral *ecdh.PrivateKey, subscriber *ecdh.PublicKey, salt []byte) ([]byte, error) {
	secret, err := ephemeral.ECDH(subscriber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubscriberKeys, err)
	}
	ephemeralPub := ephemeral.PublicKey().Bytes()

	key, nonce, err := keySchedule(secret, auth, p256dh, ephemeralPub, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// RFC 8188 record terminator for the final record, padding length zero.
	record := make([]byte, 0, len(plaintext)+1)
	record = append(record, plaintext...)
	record = append(record, 0x02)
	ciphertext := gcm.Seal(nil, nonce, record, nil)

	out := make([]byte, 0, saltLen+4+1+publicKeyLen+len(ciphertext))
	out = append(out, salt...)
	out = binary.BigEndian.AppendUint32(out, recordSize)
	out = append(out, byte(publicKeyLen))
	out = append(out, ephemeralPub...)
	out = append(out, ciphertext...)
	return out, nil
}

// keySchedule derives the 16-byte content-encryption key and 12-byte nonce
// (RFC 8291 §3.3-3.4). The first HKDF stage is salted with the subscriber's
// auth secret and bound to both public keys, which prevents key-confusion
// attacks; the second is salted with the per-message salt.
func keySchedule(secret, auth, subscriberPub, serverPub, salt []byte) (key, nonce []byte, err error) {
	keyInfo := make([]byte, 0, len("WebPush: info")+1+2*publicKeyLen)
	keyInfo = append(keyInfo, "WebPush: info\x00"...)
	keyInfo = append(keyInfo, subscriberPub...)
	keyInfo = append(keyInfo, serverPub...)

	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, auth, keyInfo), ikm); err != nil {
		return nil, nil, fmt.Errorf("derive ikm: %w", err)
	}

	key = make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: aes128gcm\x00")), key); err != nil {
		return nil, nil, fmt.Errorf("derive cek: %w", err)
	}

	nonce = make([]byte, 12)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, nil, fmt.Errorf("derive nonce: %w", err)
	}

	return key, nonce, nil
}

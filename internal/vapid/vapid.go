// Package vapid builds the signed JWTs that identify this application server
// to push services (RFC 8292).
package vapid

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"meeting-reminder-go/internal/codec"
)

// Push-service JWTs are commonly capped at 24h; a generous-but-bounded window
// avoids clock-skew failures without reuse risk.
const tokenTTL = 12 * time.Hour

// ErrCannotAuthenticate wraps crypto-provider failures during token signing.
// There is no fallback: without a valid token every push is rejected.
var ErrCannotAuthenticate = errors.New("vapid: cannot authenticate")

// KeyPair is the process-wide application server keypair, provisioned once
// out-of-band and loaded at startup.
type KeyPair struct {
	private   *ecdsa.PrivateKey
	publicB64 string
}

// ParseKeyPair loads a keypair from its base64url wire form: a 65-byte
// uncompressed P-256 point and a 32-byte private scalar.
func ParseKeyPair(publicKey, privateKey string) (*KeyPair, error) {
	pub, err := codec.Base64URLDecode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != 65 || pub[0] != 0x04 {
		return nil, errors.New("vapid: public key must be a 65-byte uncompressed P-256 point")
	}
	priv, err := codec.Base64URLDecode(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(priv) != 32 {
		return nil, errors.New("vapid: private key must be a 32-byte P-256 scalar")
	}

	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pub[1:33]),
			Y:     new(big.Int).SetBytes(pub[33:]),
		},
		D: new(big.Int).SetBytes(priv),
	}
	return &KeyPair{private: key, publicB64: codec.Base64URLEncode(pub)}, nil
}

// PublicKey returns the base64url public point, as sent in the k= parameter
// and used by browsers as the applicationServerKey.
func (k *KeyPair) PublicKey() string {
	return k.publicB64
}

// Signer issues the time-bounded JWTs asserting the sender's identity.
type Signer struct {
	keys    *KeyPair
	subject string
	now     func() time.Time
}

func NewSigner(keys *KeyPair, contact string) *Signer {
	return &Signer{keys: keys, subject: "mailto:" + contact, now: time.Now}
}

// Token builds a compact ES256 JWT scoped to the push service hosting the
// given endpoint.
func (s *Signer) Token(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("vapid: invalid endpoint %q", endpoint)
	}

	header := map[string]string{"alg": "ES256", "typ": "JWT"}
	claims := map[string]interface{}{
		"aud": u.Scheme + "://" + u.Host,
		"exp": s.now().Add(tokenTTL).Unix(),
		"sub": s.subject,
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotAuthenticate, err)
	}
	cb, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotAuthenticate, err)
	}

	signingInput := codec.Base64URLEncode(hb) + "." + codec.Base64URLEncode(cb)
	digest := sha256.Sum256([]byte(signingInput))
	der, err := ecdsa.SignASN1(rand.Reader, s.keys.private, digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotAuthenticate, err)
	}
	raw, err := codec.DERToRaw(der)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotAuthenticate, err)
	}
	return signingInput + "." + codec.Base64URLEncode(raw), nil
}

// AuthorizationHeader returns the value of the Authorization header sent with
// each push request.
func (s *Signer) AuthorizationHeader(endpoint string) (string, error) {
	token, err := s.Token(endpoint)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("vapid t=%s, k=%s", token, s.keys.publicB64), nil
}

// GenerateKeys mints a fresh application server keypair in wire form, for
// out-of-band provisioning.
func GenerateKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", err
	}
	return codec.Base64URLEncode(key.PublicKey().Bytes()), codec.Base64URLEncode(key.Bytes()), nil
}

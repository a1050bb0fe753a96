package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// RelayIdentity is a relay's Ed25519 keypair used to sign aorta requests
// (spec.md §6: "X-Sentry-Relay-Signature (Ed25519 over the canonical JSON
// body)").
type RelayIdentity struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// DeriveRelayIdentity derives a stable Ed25519 identity from a master key and
// a relay id via DeriveKeyRingSecret (HKDF-SHA256), sized to an Ed25519
// seed (32 bytes) and expanded into a keypair.
func DeriveRelayIdentity(masterKey []byte, relayID string) (*RelayIdentity, error) {
	seed, err := DeriveKeyRingSecret(masterKey, []byte(relayID), "relay-signing-key", ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("derive relay identity: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &RelayIdentity{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// SignRequestBody signs the canonical JSON body of an aorta request,
// returning the base64url-encoded signature carried in
// X-Sentry-Relay-Signature.
func (id *RelayIdentity) SignRequestBody(body []byte) string {
	sig := ed25519.Sign(id.private, body)
	return base64.RawURLEncoding.EncodeToString(sig)
}

// VerifyRequestSignature checks a base64url Ed25519 signature against body
// using the given public key, returning false (never an error) on any
// malformed input — request signature checks are a boolean gate, per
// spec.md §7's "Auth: signature rejected ... Fatal for that request".
func VerifyRequestSignature(publicKey ed25519.PublicKey, body []byte, signature string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(publicKey, body, sig)
}

// DeriveKeyRingSecret derives n bytes of secret material (e.g. for sealing
// a cached relay identity at rest, or the Ed25519 seed of
// DeriveRelayIdentity) using SHA-256 HKDF with a caller-chosen salt and
// info string.
func DeriveKeyRingSecret(masterKey, salt []byte, info string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, salt, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive keyring secret: %w", err)
	}
	return out, nil
}

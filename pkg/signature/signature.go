// Package signature authenticates inbound webhook calls from the open
// platform and produces the handshake challenge response. The platform
// signs `timestamp || body` with an Ed25519 key derived from the bot's
// app secret; the same key signs our answer to a validation challenge.
package signature

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignatureFormat means the declared signature was not
	// valid hex or did not decode to the 64 bytes the platform documents.
	ErrInvalidSignatureFormat = errors.New("signature is not a 64-byte hex-encoded ed25519 signature")
	// ErrSignatureMismatch means the cryptographic check failed; the
	// configured app secret does not match the platform's key.
	ErrSignatureMismatch = errors.New("signature verification failed, check the configured app secret")
)

// Verifier holds the key pair derived from the shared app secret.
type Verifier struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// DeriveSeed expands the app secret into an Ed25519 seed the way the
// platform requires: repeat the secret until it reaches 32 bytes, then
// truncate to exactly 32.
func DeriveSeed(secret string) []byte {
	seed := []byte(secret)
	for len(seed) < ed25519.SeedSize {
		seed = append(seed, seed...)
	}
	return seed[:ed25519.SeedSize]
}

// New builds a Verifier from the bot app secret.
func New(secret string) *Verifier {
	priv := ed25519.NewKeyFromSeed(DeriveSeed(secret))
	return &Verifier{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}
}

// PublicKey exposes the verifying key. Useful for independently checking
// signatures this Verifier produced.
func (v *Verifier) PublicKey() ed25519.PublicKey { return v.pub }

// Verify checks that sigHex is a valid signature over `timestamp || body`.
// Format problems are reported before any cryptographic work.
func (v *Verifier) Verify(sigHex, timestamp string, body []byte) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignatureFormat, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: decoded length %d", ErrInvalidSignatureFormat, len(sig))
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	if !ed25519.Verify(v.pub, msg, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// ChallengeResponse is the body returned to a validation callback.
type ChallengeResponse struct {
	PlainToken string `json:"plain_token"`
	Signature  string `json:"signature"`
}

// Respond signs `timestamp || plainToken` and assembles the challenge
// response the platform expects after a successful Verify.
func (v *Verifier) Respond(timestamp, plainToken string) ChallengeResponse {
	msg := make([]byte, 0, len(timestamp)+len(plainToken))
	msg = append(msg, timestamp...)
	msg = append(msg, plainToken...)
	return ChallengeResponse{
		PlainToken: plainToken,
		Signature:  hex.EncodeToString(ed25519.Sign(v.priv, msg)),
	}
}

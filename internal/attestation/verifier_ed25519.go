package attestation

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"

	dErrors "derisk/pkg/domain-errors"
)

// Ed25519Verifier is a development verifier: the seal is an Ed25519 signature
// by a trusted key over programID || digest. It lets operators exercise the
// attestation path without a proving stack.
type Ed25519Verifier struct {
	key ed25519.PublicKey
}

func NewEd25519Verifier(key ed25519.PublicKey) *Ed25519Verifier {
	return &Ed25519Verifier{key: key}
}

// ParseEd25519PublicKey decodes a hex public key.
func ParseEd25519PublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, dErrors.Newf(dErrors.CodeValidation, "ed25519 public key must be %d bytes of hex", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// SealMessage is the byte string a development seal signs.
func SealMessage(program ProgramID, digest [32]byte) []byte {
	msg := make([]byte, 0, len(program)+len(digest))
	msg = append(msg, program[:]...)
	return append(msg, digest[:]...)
}

// SignSeal produces a development seal.
func SignSeal(key ed25519.PrivateKey, program ProgramID, digest [32]byte) []byte {
	return ed25519.Sign(key, SealMessage(program, digest))
}

func (v *Ed25519Verifier) Verify(_ context.Context, seal []byte, program ProgramID, digest [32]byte) error {
	if len(seal) != ed25519.SignatureSize {
		return errors.New("seal has wrong length")
	}
	if !ed25519.Verify(v.key, SealMessage(program, digest), seal) {
		return errors.New("seal signature invalid")
	}
	return nil
}

package attestation

import (
	"context"
)

// Verifier checks that seal proves an execution of program whose journal
// hashes to digest. Any non-nil error is a rejection; callers must not try to
// distinguish failure modes.
type Verifier interface {
	Verify(ctx context.Context, seal []byte, program ProgramID, digest [32]byte) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, seal []byte, program ProgramID, digest [32]byte) error

func (f VerifierFunc) Verify(ctx context.Context, seal []byte, program ProgramID, digest [32]byte) error {
	return f(ctx, seal, program, digest)
}

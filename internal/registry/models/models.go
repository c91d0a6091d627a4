package models

import (
	"time"

	"derisk/internal/attestation"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

// Source tags where a score change came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceProof  Source = "proof"
)

// Attestation is the metadata of the last accepted proof for a subject.
type Attestation struct {
	TotalAssets      attestation.Uint128 `json:"total_assets"`
	TotalLiabilities attestation.Uint128 `json:"total_liabilities"`
	// Timestamp is the journal's own unix timestamp, not the submission time.
	Timestamp uint64 `json:"timestamp"`
}

// Subject is an insured subject and its current safety score.
//
// Invariants:
//   - Score is always within [0, 100]
//   - VerificationCount only grows
type Subject struct {
	ID                domain.SubjectID       `json:"subject_id"`
	Score             uint8                  `json:"score"`
	Program           *attestation.ProgramID `json:"program_id,omitempty"`
	Attestation       *Attestation           `json:"attestation,omitempty"`
	VerificationCount uint64                 `json:"verification_count"`
	RegisteredAt      time.Time              `json:"registered_at"`
}

// NewSubject creates a registered subject with an initial score.
func NewSubject(id domain.SubjectID, score uint8, now time.Time) (*Subject, error) {
	if id.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject id cannot be empty")
	}
	if score > attestation.MaxScore {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "score must be at most %d", attestation.MaxScore)
	}
	return &Subject{ID: id, Score: score, RegisteredAt: now}, nil
}

// SetScore overwrites the score and returns the previous one.
func (s *Subject) SetScore(score uint8) (uint8, error) {
	if score > attestation.MaxScore {
		return s.Score, dErrors.Newf(dErrors.CodeInvariantViolation, "score must be at most %d", attestation.MaxScore)
	}
	old := s.Score
	s.Score = score
	return old, nil
}

// BindProgram records the only program trusted to attest for this subject.
func (s *Subject) BindProgram(program attestation.ProgramID) error {
	if program.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "program id cannot be zero")
	}
	p := program
	s.Program = &p
	return nil
}

// ApplyJournal stores the attested score and metadata. It reports the
// previous score and whether the journal is older than the one already on
// record. Stale journals are still applied.
func (s *Subject) ApplyJournal(j attestation.Journal) (old uint8, stale bool) {
	old = s.Score
	stale = s.Attestation != nil && j.Timestamp < s.Attestation.Timestamp
	s.Score = j.Score()
	s.Attestation = &Attestation{
		TotalAssets:      j.TotalAssets,
		TotalLiabilities: j.TotalLiabilities,
		Timestamp:        j.Timestamp,
	}
	s.VerificationCount++
	return old, stale
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Subject) Clone() *Subject {
	c := *s
	if s.Program != nil {
		p := *s.Program
		c.Program = &p
	}
	if s.Attestation != nil {
		a := *s.Attestation
		c.Attestation = &a
	}
	return &c
}

// ScoreChange is one row of a subject's append-only score history.
type ScoreChange struct {
	SubjectID domain.SubjectID `json:"subject_id"`
	OldScore  uint8            `json:"old_score"`
	NewScore  uint8            `json:"new_score"`
	Source    Source           `json:"source"`
	ChangedAt time.Time        `json:"changed_at"`
}

package handler

import (
	"strings"

	"derisk/internal/attestation"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

// RegisterSubjectRequest is the body of POST /admin/subjects.
type RegisterSubjectRequest struct {
	SubjectID string `json:"subject_id"`
	Score     *int   `json:"score"`

	parsedSubject domain.SubjectID
	parsedScore   uint8
}

func (r *RegisterSubjectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	id, err := domain.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}
	r.parsedSubject = id
	score, err := parseScore(r.Score)
	if err != nil {
		return err
	}
	r.parsedScore = score
	return nil
}

// UpdateScoreRequest is the body of PUT /admin/subjects/{id}/score.
type UpdateScoreRequest struct {
	Score *int `json:"score"`

	parsedScore uint8
}

func (r *UpdateScoreRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	score, err := parseScore(r.Score)
	if err != nil {
		return err
	}
	r.parsedScore = score
	return nil
}

// BindProgramRequest is the body of PUT /admin/subjects/{id}/program.
type BindProgramRequest struct {
	ProgramID string `json:"program_id"`

	parsedProgram attestation.ProgramID
}

func (r *BindProgramRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := attestation.ParseProgramID(r.ProgramID)
	if err != nil {
		return err
	}
	r.parsedProgram = p
	return nil
}

// SubmitAttestationRequest is the body of POST /v1/subjects/{id}/attestations.
// Journal length is deliberately not checked here; the registry owns that rule.
type SubmitAttestationRequest struct {
	Journal string `json:"journal"`
	Seal    string `json:"seal"`

	journal []byte
	seal    []byte
}

func (r *SubmitAttestationRequest) Normalize() {
	r.Journal = strings.TrimSpace(r.Journal)
	r.Seal = strings.TrimSpace(r.Seal)
}

func (r *SubmitAttestationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Journal == "" {
		return dErrors.New(dErrors.CodeValidation, "journal is required")
	}
	journal, err := attestation.DecodeHex("journal", r.Journal)
	if err != nil {
		return err
	}
	seal, err := attestation.DecodeHex("seal", r.Seal)
	if err != nil {
		return err
	}
	r.journal, r.seal = journal, seal
	return nil
}

func parseScore(v *int) (uint8, error) {
	if v == nil {
		return 0, dErrors.New(dErrors.CodeValidation, "score is required")
	}
	if *v < 0 || *v > attestation.MaxScore {
		return 0, dErrors.Newf(dErrors.CodeValidation, "score must be between 0 and %d", attestation.MaxScore)
	}
	return uint8(*v), nil
}

package handler

import (
	"time"

	"derisk/internal/registry/models"
)

// SubjectResponse is the HTTP view of a subject record.
type SubjectResponse struct {
	SubjectID         string               `json:"subject_id"`
	Score             uint8                `json:"score"`
	ProgramID         string               `json:"program_id,omitempty"`
	Attestation       *AttestationResponse `json:"attestation,omitempty"`
	VerificationCount uint64               `json:"verification_count"`
	RegisteredAt      time.Time            `json:"registered_at"`
}

// AttestationResponse carries u128 values as decimal strings plus a
// human-readable USD rendering.
type AttestationResponse struct {
	TotalAssets         string `json:"total_assets"`
	TotalLiabilities    string `json:"total_liabilities"`
	TotalAssetsUSD      string `json:"total_assets_usd"`
	TotalLiabilitiesUSD string `json:"total_liabilities_usd"`
	Timestamp           uint64 `json:"timestamp"`
}

// usdScale is the fixed-point scale of attested USD values.
const usdScale = 8

func FromSubject(s *models.Subject) *SubjectResponse {
	resp := &SubjectResponse{
		SubjectID:         s.ID.String(),
		Score:             s.Score,
		VerificationCount: s.VerificationCount,
		RegisteredAt:      s.RegisteredAt,
	}
	if s.Program != nil {
		resp.ProgramID = s.Program.String()
	}
	if a := s.Attestation; a != nil {
		resp.Attestation = &AttestationResponse{
			TotalAssets:         a.TotalAssets.String(),
			TotalLiabilities:    a.TotalLiabilities.String(),
			TotalAssetsUSD:      a.TotalAssets.Decimal(usdScale).StringFixed(2),
			TotalLiabilitiesUSD: a.TotalLiabilities.Decimal(usdScale).StringFixed(2),
			Timestamp:           a.Timestamp,
		}
	}
	return resp
}

// ScoreChangeResponse is one history row.
type ScoreChangeResponse struct {
	OldScore  uint8     `json:"old_score"`
	NewScore  uint8     `json:"new_score"`
	Source    string    `json:"source"`
	ChangedAt time.Time `json:"changed_at"`
}

// HistoryResponse is the body of GET /v1/subjects/{id}/history.
type HistoryResponse struct {
	SubjectID string                `json:"subject_id"`
	Changes   []ScoreChangeResponse `json:"changes"`
}

func FromHistory(id string, changes []models.ScoreChange) *HistoryResponse {
	resp := &HistoryResponse{SubjectID: id, Changes: make([]ScoreChangeResponse, 0, len(changes))}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, ScoreChangeResponse{
			OldScore:  c.OldScore,
			NewScore:  c.NewScore,
			Source:    string(c.Source),
			ChangedAt: c.ChangedAt,
		})
	}
	return resp
}

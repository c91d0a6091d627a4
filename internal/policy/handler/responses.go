package handler

import (
	"time"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
)

// PolicyResponse is the HTTP view of a policy. Amounts are decimal strings.
type PolicyResponse struct {
	PolicyID     string        `json:"policy_id"`
	SubjectID    string        `json:"subject_id"`
	StrikeScore  uint8         `json:"strike_score"`
	Expiry       time.Time     `json:"expiry"`
	PayoutAmount string        `json:"payout_amount"`
	Premium      string        `json:"premium"`
	Holder       string        `json:"holder"`
	Claimed      bool          `json:"claimed"`
	Status       models.Status `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

func FromPolicy(p *models.Policy, status models.Status) *PolicyResponse {
	return &PolicyResponse{
		PolicyID:     p.ID.String(),
		SubjectID:    p.SubjectID.String(),
		StrikeScore:  p.StrikeScore,
		Expiry:       p.Expiry,
		PayoutAmount: domain.FormatAmount(p.PayoutAmount),
		Premium:      domain.FormatAmount(p.Premium),
		Holder:       p.Holder.String(),
		Claimed:      p.Claimed,
		Status:       status,
		CreatedAt:    p.CreatedAt,
	}
}

type PolicyListResponse struct {
	Policies []*PolicyResponse `json:"policies"`
}

type ClaimResponse struct {
	PolicyID string `json:"policy_id"`
	Paid     string `json:"paid"`
	Status   string `json:"status"`
}

type ClaimableResponse struct {
	PolicyID  string        `json:"policy_id"`
	Claimable bool          `json:"claimable"`
	Reason    models.Reason `json:"reason"`
}

// QuoteResponse tells the buyer what to approve and to whom.
type QuoteResponse struct {
	Premium string `json:"premium"`
	Spender string `json:"spender"`
}

type ExposureResponse struct {
	SubjectID    string `json:"subject_id"`
	TotalInsured string `json:"total_insured"`
}

package handler

import (
	"net/url"
	"strconv"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

// BuyPolicyRequest is the body of POST /v1/policies. The payout is a decimal
// string in the pool asset's smallest unit.
type BuyPolicyRequest struct {
	SubjectID    string `json:"subject_id"`
	StrikeScore  *int   `json:"strike_score"`
	DurationDays *int   `json:"duration_days"`
	PayoutAmount string `json:"payout_amount"`

	terms models.Terms
}

func (r *BuyPolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	terms, err := parseTerms(r.SubjectID, r.StrikeScore, r.DurationDays, r.PayoutAmount)
	if err != nil {
		return err
	}
	r.terms = terms
	return nil
}

// quoteFromQuery reads GET /v1/quote parameters.
func quoteFromQuery(q url.Values) (models.Terms, error) {
	strike, err := optionalInt(q, "strike_score")
	if err != nil {
		return models.Terms{}, err
	}
	duration, err := optionalInt(q, "duration_days")
	if err != nil {
		return models.Terms{}, err
	}
	return parseTerms(q.Get("subject_id"), strike, duration, q.Get("payout_amount"))
}

func parseTerms(subjectID string, strike, duration *int, payout string) (models.Terms, error) {
	subject, err := domain.ParseSubjectID(subjectID)
	if err != nil {
		return models.Terms{}, err
	}
	if strike == nil {
		return models.Terms{}, dErrors.New(dErrors.CodeValidation, "strike_score is required")
	}
	if *strike < models.MinStrike || *strike > models.MaxStrike {
		return models.Terms{}, dErrors.Newf(dErrors.CodeValidation,
			"strike_score must be between %d and %d", models.MinStrike, models.MaxStrike)
	}
	if duration == nil {
		return models.Terms{}, dErrors.New(dErrors.CodeValidation, "duration_days is required")
	}
	if *duration < models.MinDurationDay || *duration > models.MaxDurationDay {
		return models.Terms{}, dErrors.Newf(dErrors.CodeValidation,
			"duration_days must be between %d and %d", models.MinDurationDay, models.MaxDurationDay)
	}
	amount, err := domain.ParseAmount("payout_amount", payout)
	if err != nil {
		return models.Terms{}, err
	}
	return models.Terms{
		SubjectID:    subject,
		StrikeScore:  uint8(*strike),
		DurationDays: uint32(*duration),
		PayoutAmount: amount,
	}, nil
}

func optionalInt(q url.Values, key string) (*int, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be an integer", key)
	}
	return &v, nil
}
